// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Command portproxy forwards TCP connections arriving on the WSL
// interface to services which only listen on localhost inside the
// container, so they stay reachable from Windows and the LAN.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/logging"
	"github.com/nullpo-head/wsl-distrod/internal/portproxy"
)

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	code := 0

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)

		code = 1
	}

	cancel()
	os.Exit(code)
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "portproxy",
		Short:         "Forward TCP ports of the WSL interface to localhost services",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logging.Configure(cmd.ErrOrStderr(), logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(
		&logLevel, "log-level", "l", "",
		"log level (error, warn, info or debug)",
	)

	cmd.AddCommand(proxyCmd())
	cmd.AddCommand(showIPv4Cmd())

	return cmd
}

func proxyCmd() *cobra.Command {
	var (
		destAddr  string
		portsFile string
	)

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the forwarding loops for the listed ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := portproxy.LoadPortsFile(portsFile)
			if err != nil {
				return err
			}

			if len(ports) == 0 {
				slog.Info("no ports to forward", "ports_file", portsFile)

				return nil
			}

			return portproxy.Run(cmd.Context(), destAddr, ports)
		},
	}

	cmd.Flags().StringVar(
		&destAddr, "dest-addr", "127.0.0.1",
		"address to forward accepted connections to",
	)
	cmd.Flags().StringVar(
		&portsFile, "ports-file", config.PortsFilePath,
		"file listing the TCP ports to forward",
	)

	return cmd
}

func showIPv4Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-ipv4 [interface]",
		Short: "Print the first IPv4 address of a network interface",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "eth0"
			if len(args) == 1 {
				name = args[0]
			}

			addr, err := portproxy.InterfaceIPv4(name)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), addr)

			return nil
		},
	}
}
