// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Command distrod-exec is a setuid bridge which runs aliased commands
// inside the systemd container. Shells rewritten by the shell hook
// land here: the bridge enters the container with the caller's real
// credential, launching the container first when none is running, and
// falls back to plain execution rather than ever stranding a login.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nullpo-head/wsl-distrod/internal/alias"
	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/logging"
)

func main() {
	container.MaybeRunHelper()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	code := execute(ctx)

	cancel()
	os.Exit(code)
}

func execute(ctx context.Context) int {
	if b, ok := aliasBridge(alias.Default(), executablePath(), os.Args); ok {
		configureLogging("", "")

		return runBridge(ctx, b)
	}

	var status int

	cmd := rootCmd(&status)
	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)

		return 1
	}

	return status
}

func rootCmd(status *int) *cobra.Command {
	var (
		logLevel     string
		kmsgLogLevel string
	)

	cmd := &cobra.Command{
		Use:           "distrod-exec command arg0 [args...]",
		Short:         "Run an aliased command inside the systemd container",
		Args:          cobra.MinimumNArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(logLevel, kmsgLogLevel)

			*status = runBridge(cmd.Context(), &bridge{
				command: args[0],
				argv:    args[1:],
			})

			return nil
		},
	}

	// Everything from the command path on belongs to the command.
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().StringVarP(
		&logLevel, "log-level", "l", "",
		"log level (error, warn, info or debug)",
	)
	cmd.Flags().StringVarP(
		&kmsgLogLevel, "kmsg-log-level", "k", "",
		"log level of the /dev/kmsg sink",
	)

	return cmd
}

func runBridge(ctx context.Context, b *bridge) int {
	status, err := run(ctx, b)
	if err != nil {
		slog.Error("command bridge failed", "error", err)

		return 1
	}

	return status
}

func executablePath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}

	return exe
}

// configureLogging selects the sink an unattended session start needs:
// stderr when a person is watching the terminal, the kernel ring
// buffer otherwise. Logging must never take a login down, so setup
// failures keep the default logger.
func configureLogging(logLevel, kmsgLogLevel string) {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	logLevel, kmsgLogLevel = pickLevels(cfg, logLevel, kmsgLogLevel)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		_ = logging.Configure(os.Stderr, logLevel)

		return
	}

	writer, err := logging.NewKmsgWriter()
	if err != nil {
		_ = logging.Configure(os.Stderr, logLevel)

		return
	}

	_ = logging.Configure(writer, kmsgLogLevel)
}

// pickLevels resolves the sink levels from the flags and the
// configuration. The kmsg level defaults to error since the kernel
// ring buffer is shared with the whole machine.
func pickLevels(cfg *config.Config, logLevel, kmsgLogLevel string) (string, string) {
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}

	if kmsgLogLevel == "" {
		kmsgLogLevel = cfg.KmsgLogLevel
	}

	if kmsgLogLevel == "" {
		kmsgLogLevel = "error"
	}

	return logLevel, kmsgLogLevel
}
