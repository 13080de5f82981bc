// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/alias"
	"github.com/nullpo-head/wsl-distrod/internal/autostart"
	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/distro"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/portproxy"
	"github.com/nullpo-head/wsl-distrod/internal/state"
	"github.com/nullpo-head/wsl-distrod/internal/unit"
)

func disableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Restore this WSL distribution to its default boot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := state.NewStore()
			if err := guardManage(store); err != nil {
				return err
			}

			return runDisable(cmd.Context(), store)
		},
	}
}

// runDisable undoes everything enable set up. Every step tolerates
// its work being already undone, so a half disabled installation can
// be disabled again.
func runDisable(ctx context.Context, store *state.Store) error {
	running, err := distro.GetRunning(store)
	if err != nil {
		return err
	}

	if running != nil {
		slog.Info("stopping the running container", "pid", running.InitPID())

		ctx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()

		if err := running.Stop(ctx, false); err != nil {
			return err
		}
	}

	unregisterAutostart(ctx)

	err = alias.DisableShellHook(alias.Default(), "/etc/passwd")
	if err != nil {
		return fmt.Errorf("disable the shell hook: %w", err)
	}

	patcher, err := unit.NewPatcher("/")
	if err != nil {
		return err
	}

	if err := patcher.Revert(); err != nil {
		return err
	}

	if err := portproxy.RemoveService("/"); err != nil {
		return err
	}

	// The bridge scripts and any leftover instance record live on
	// tmpfs under the runtime directory.
	if err := os.RemoveAll(config.RuntimeDir); err != nil {
		return fmt.Errorf("clear runtime directory: %w", err)
	}

	slog.Info("distrod is disabled, the distribution boots plain on the next start")

	return nil
}

// unregisterAutostart removes the Windows startup task. The task may
// never have been registered and the Windows side may be unreachable,
// so failures only warn.
func unregisterAutostart(ctx context.Context) {
	name, err := interop.DistroName()
	if err != nil {
		slog.Warn("cannot determine the WSL distribution name, skipping the startup task removal",
			"error", err)

		return
	}

	if err := autostart.Unregister(ctx, name); err != nil {
		slog.Warn("cannot remove the startup task", "error", err)
	}
}
