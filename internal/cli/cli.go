// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package cli implements the distrod command line. Each subcommand
// lives in its own file and wires the container, distro and rootfs
// packages together. Errors escaping a command are mapped to distinct
// process exit codes, since scripts on the Windows side match on them.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/logging"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// Run executes one distrod invocation with the given arguments, not
// including the program name, and returns the process exit code.
func Run(ctx context.Context, args []string) int {
	if err := logging.Configure(os.Stderr, ""); err != nil {
		fmt.Fprintln(os.Stderr, err)

		return exitFailure
	}

	root := rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var status exitStatusError
	if errors.As(err, &status) {
		return int(status)
	}

	slog.Error("command failed", "error", err)

	return exitCodeFor(err)
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "distrod",
		Short:         "Run a systemd-enabled distribution on WSL 2",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logging.Configure(cmd.ErrOrStderr(), logLevel)
		},
		// A bare invocation is the login shell path: enter the
		// container, starting it first when none is running, and run
		// the caller's shell inside it.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd.Context(), state.NewStore())
		},
	}

	cmd.PersistentFlags().StringVarP(
		&logLevel, "log-level", "l", "",
		"log level (error, warn, info or debug)",
	)

	cmd.AddCommand(createCmd())
	cmd.AddCommand(enableCmd())
	cmd.AddCommand(disableCmd())
	cmd.AddCommand(startCmd())
	cmd.AddCommand(stopCmd())
	cmd.AddCommand(execCmd())

	return cmd
}

// requireRoot guards the commands which modify system state. They run
// with root privileges only, matching the ownership of the files they
// create.
func requireRoot() error {
	if os.Getuid() != 0 {
		return ErrRootRequired
	}

	return nil
}

// guardManage enforces the shared preconditions of the commands which
// manage the container: root privileges, and not running inside the
// container they would manage.
func guardManage(store *state.Store) error {
	if err := requireRoot(); err != nil {
		return err
	}

	if container.IsNested(store) {
		return container.ErrNested
	}

	return nil
}
