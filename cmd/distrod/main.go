// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Command distrod turns a WSL 2 distribution into a systemd container
// and manages sessions inside it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/alias"
	"github.com/nullpo-head/wsl-distrod/internal/cli"
	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/container"
)

func main() {
	container.MaybeRunHelper()
	maybeRunAsAlias()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	code := cli.Run(ctx, os.Args[1:])

	cancel()
	os.Exit(code)
}

// maybeRunAsAlias hands an invocation through an alias link of the
// distrod binary over to the exec bridge, which runs the real command
// inside the container. Current installations link their aliases to
// distrod-exec directly, but ones enabled by older versions still
// point at distrod itself.
func maybeRunAsAlias() {
	exe, err := os.Executable()
	if err != nil {
		return
	}

	source, err := alias.Default().SourcePath(exe)
	if err != nil {
		return
	}

	argv := append([]string{config.ExecBinPath, source}, os.Args...)

	err = unix.Exec(config.ExecBinPath, argv, os.Environ())
	fmt.Fprintf(os.Stderr, "Error: run the exec bridge: %v\n", err)
	os.Exit(1)
}
