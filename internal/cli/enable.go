// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/alias"
	"github.com/nullpo-head/wsl-distrod/internal/autostart"
	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/portproxy"
	"github.com/nullpo-head/wsl-distrod/internal/rootfs"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

func enableCmd() *cobra.Command {
	var (
		startOnBoot   bool
		noStartOnBoot bool
	)

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Make this WSL distribution run under systemd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := guardManage(state.NewStore()); err != nil {
				return err
			}

			return runEnable(cmd.Context(), startOnBoot, noStartOnBoot)
		},
	}

	cmd.Flags().BoolVar(
		&startOnBoot, "start-on-boot", false,
		"register a Windows task starting this distribution at logon",
	)
	cmd.Flags().BoolVar(
		&noStartOnBoot, "do-not-start-on-boot", false,
		"do not register the startup task and do not suggest it",
	)
	cmd.MarkFlagsMutuallyExclusive("start-on-boot", "do-not-start-on-boot")

	return cmd
}

// runEnable converts the distribution distrod is installed in, so all
// paths are under the live root.
func runEnable(ctx context.Context, startOnBoot, noStartOnBoot bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := rootfs.Initialize("/", cfg.Units, false); err != nil {
		return err
	}

	err = alias.EnableShellHook(alias.Default(), "/etc/passwd", config.ExecBinPath)
	if err != nil {
		return fmt.Errorf("enable the shell hook: %w", err)
	}

	if err := os.MkdirAll(config.ConfDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := portproxy.EnsurePortsFile(config.PortsFilePath); err != nil {
		return err
	}

	if err := portproxy.InstallService("/"); err != nil {
		return err
	}

	switch {
	case startOnBoot:
		if err := registerAutostart(ctx); err != nil {
			return err
		}
	case !noStartOnBoot:
		slog.Info("rerun with --start-on-boot to launch this distribution at Windows startup")
	}

	slog.Info("distrod is enabled, restart the distribution to boot under systemd")

	return nil
}

// registerAutostart schedules the Windows startup task. Interop being
// unavailable is a warning rather than a failure, so enable keeps
// working in sessions without a Windows side.
func registerAutostart(ctx context.Context) error {
	name, err := interop.DistroName()
	if err != nil {
		slog.Warn("cannot determine the WSL distribution name, skipping the startup task",
			"error", err)

		return nil
	}

	err = autostart.Register(ctx, name)
	if errors.Is(err, autostart.ErrNoSystemDrive) {
		slog.Warn("no Windows system drive is mounted, skipping the startup task",
			"error", err)

		return nil
	}

	return err
}
