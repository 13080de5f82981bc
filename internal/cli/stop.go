// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/distro"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// stopTimeout bounds how long a shutdown may take before stop gives
// up. A healthy systemd powers off in a few seconds.
const stopTimeout = 30 * time.Second

func stopCmd() *cobra.Command {
	var sigkill bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Shut the running container down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := state.NewStore()
			if err := guardManage(store); err != nil {
				return err
			}

			return runStop(cmd.Context(), store, sigkill)
		},
	}

	cmd.Flags().BoolVarP(
		&sigkill, "sigkill", "9", false,
		"kill the init process instead of requesting a clean shutdown",
	)

	return cmd
}

func runStop(ctx context.Context, store *state.Store, sigkill bool) error {
	d, err := distro.GetRunning(store)
	if err != nil {
		return err
	}

	if d == nil {
		return container.ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	if err := d.Stop(ctx, sigkill); err != nil {
		return err
	}

	slog.Info("the container is stopped")

	return nil
}
