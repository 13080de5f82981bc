// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/distro"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/passwd"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

func execCmd() *cobra.Command {
	var (
		user       string
		workDir    string
		rootfsPath string
	)

	cmd := &cobra.Command{
		Use:   "exec -- command [args...]",
		Short: "Run a command inside the container",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := state.NewStore()
			if err := guardManage(store); err != nil {
				return err
			}

			return runExec(cmd.Context(), store, execOptions{
				user:       user,
				workDir:    workDir,
				rootfsPath: rootfsPath,
				argv:       args,
			})
		},
	}

	cmd.Flags().StringVarP(
		&user, "user", "u", "",
		"user to run the command as, root when omitted",
	)
	cmd.Flags().StringVarP(
		&workDir, "working-directory", "w", "",
		"working directory inside the container",
	)
	cmd.Flags().StringVarP(
		&rootfsPath, "rootfs", "r", "",
		"rootfs to boot when no container is running",
	)

	return cmd
}

type execOptions struct {
	user       string
	workDir    string
	rootfsPath string
	argv       []string
}

func runExec(ctx context.Context, store *state.Store, opts execOptions) error {
	build := func(d *distro.Distro) (*container.Command, error) {
		var cred *passwd.Credential

		if opts.user != "" {
			var err error

			cred, err = passwd.CredentialFor(d.RootfsPath(), opts.user)
			if err != nil {
				return nil, err
			}
		}

		return &container.Command{
			Path: opts.argv[0],
			Args: opts.argv,
			Dir:  opts.workDir,
			Cred: cred,
		}, nil
	}

	return enter(ctx, store, opts.rootfsPath, build)
}

// enter publishes the session bridge and runs a command inside the
// distro, launching one first when none is running. The command is
// built against the distro it will enter, since user lookups read the
// rootfs of that distro.
func enter(
	ctx context.Context,
	store *state.Store,
	rootfsPath string,
	build func(*distro.Distro) (*container.Command, error),
) error {
	d, err := distro.EnsureRunning(ctx, store, rootfsPath)
	if err != nil {
		return err
	}

	command, err := build(d)
	if err != nil {
		return err
	}

	if err := publishBridge(command.Cred); err != nil {
		return err
	}

	code, err := d.Exec(command)
	if errors.Is(err, container.ErrNotRunning) {
		// A concurrent stop won the race between the liveness check
		// and the entry. Launch a fresh container and enter again.
		slog.Debug("the container went away before entry, retrying", "error", err)

		d, err = distro.EnsureRunning(ctx, store, rootfsPath)
		if err != nil {
			return err
		}

		command, err = build(d)
		if err != nil {
			return err
		}

		code, err = d.Exec(command)
	}

	if err != nil {
		return err
	}

	if code != 0 {
		return exitStatusError(code)
	}

	return nil
}

// publishBridge publishes the WSL session environment for the
// credential about to enter. Only a tampered bridge script is fatal.
// A session without WSL interop, such as a plain Linux test
// environment, just leaves the bridge unpublished.
func publishBridge(cred *passwd.Credential) error {
	if cred == nil {
		cred = passwd.NewCredential(0, 0, nil)
	}

	err := distro.PublishBridge(cred)
	if errors.Is(err, interop.ErrUntrustedScript) {
		return err
	}

	if err != nil {
		slog.Warn("cannot publish the WSL session environment", "error", err)
	}

	return nil
}
