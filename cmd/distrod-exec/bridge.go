// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/alias"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/distro"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/passwd"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// bridge describes one command a distrod-exec invocation stands in
// for. The argv is handed through untouched, so argv[0] keeps markers
// such as the login dash.
type bridge struct {
	command string
	argv    []string
}

// aliasBridge derives the bridge from an invocation through an alias
// hardlink. The executable path names the alias, and the command is
// the path the alias mirrors.
func aliasBridge(store *alias.Store, exe string, argv []string) (*bridge, bool) {
	source, err := store.SourcePath(exe)
	if err != nil {
		return nil, false
	}

	return &bridge{command: source, argv: argv}, true
}

// run executes the bridged command. Inside the container it becomes
// the command directly. Outside it enters the container, launching
// the default distro first when none is running. On any failure the
// command runs in the plain WSL environment instead, since a broken
// container must not cost the user their shell.
func run(ctx context.Context, b *bridge) (int, error) {
	cred, err := passwd.RealCredential()
	if err != nil {
		return 0, err
	}

	store := state.NewStore()

	if container.IsNested(store) {
		return 0, b.execDirect(cred)
	}

	status, err := b.execInContainer(ctx, store, cred)
	if err != nil {
		slog.Error("cannot run the command under systemd, falling back to plain execution",
			"error", err)

		return 0, b.execDirect(cred)
	}

	return status, nil
}

// execDirect drops to the credential and replaces this process with
// the command. It only returns on failure.
func (b *bridge) execDirect(cred *passwd.Credential) error {
	if err := cred.DropPrivilege(); err != nil {
		return fmt.Errorf("drop privileges: %w", err)
	}

	if err := unix.Exec(b.command, b.argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", b.command, err)
	}

	return nil
}

// execInContainer runs the command inside the running distro with the
// caller's credential and working directory.
func (b *bridge) execInContainer(
	ctx context.Context, store *state.Store, cred *passwd.Credential,
) (int, error) {
	d, err := distro.EnsureRunning(ctx, store, "")
	if err != nil {
		return 0, err
	}

	publishBridge(cred)

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "/"
	}

	return d.Exec(&container.Command{
		Path: b.command,
		Args: b.argv,
		Dir:  workDir,
		Cred: cred,
	})
}

// publishBridge publishes the WSL session environment for the
// credential. An untrusted existing script is never overwritten, the
// session just continues without fresh interop variables.
func publishBridge(cred *passwd.Credential) {
	err := distro.PublishBridge(cred)
	if errors.Is(err, interop.ErrUntrustedScript) {
		slog.Error("refusing to overwrite the env bridge script", "error", err)

		return
	}

	if err != nil {
		slog.Warn("cannot publish the WSL session environment", "error", err)
	}
}
