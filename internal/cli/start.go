// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/distro"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

func startCmd() *cobra.Command {
	var rootfsPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the container and its systemd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := state.NewStore()
			if err := guardManage(store); err != nil {
				return err
			}

			return runStart(cmd.Context(), store, rootfsPath)
		},
	}

	cmd.Flags().StringVarP(
		&rootfsPath, "rootfs", "r", "",
		"rootfs to boot instead of the configured default",
	)

	return cmd
}

func runStart(ctx context.Context, store *state.Store, rootfsPath string) error {
	running, err := distro.GetRunning(store)
	if err != nil {
		return err
	}

	if running != nil {
		slog.Info("the container is already running", "pid", running.InitPID())

		return nil
	}

	if rootfsPath == "" {
		rootfsPath, err = distro.DefaultRootfs()
		if err != nil {
			return err
		}
	}

	d, err := distro.NewLauncher(store).Launch(ctx, rootfsPath)
	if err != nil {
		return err
	}

	slog.Info("the container is up",
		"pid", d.InitPID(), "rootfs", d.RootfsPath())

	return nil
}
