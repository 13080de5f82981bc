// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"path/filepath"

	"github.com/nullpo-head/wsl-distrod/internal/alias"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/distro"
	"github.com/nullpo-head/wsl-distrod/internal/passwd"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// runLogin is the bare invocation: enter the container with the login
// shell of the calling user, as if the session had been started
// through the shell hook.
func runLogin(ctx context.Context, store *state.Store) error {
	if err := guardManage(store); err != nil {
		return err
	}

	cred, err := passwd.RealCredential()
	if err != nil {
		return err
	}

	build := func(d *distro.Distro) (*container.Command, error) {
		return loginCommand(d.RootfsPath(), cred)
	}

	return enter(ctx, store, "", build)
}

// loginCommand resolves the login shell of the credential inside the
// rootfs. A shell pointing into the alias directory is followed back
// to the real one, since entering the alias would bounce through the
// exec bridge a second time.
func loginCommand(rootfsPath string, cred *passwd.Credential) (*container.Command, error) {
	file, err := passwd.Open(filepath.Join(rootfsPath, "etc/passwd"))
	if err != nil {
		return nil, err
	}

	shell := "/bin/sh"
	home := "/"

	if entry := file.ByUID(cred.UID); entry != nil {
		if entry.Shell != "" {
			shell = entry.Shell
		}

		if entry.Home != "" {
			home = entry.Home
		}
	}

	if source, err := alias.Default().SourcePath(shell); err == nil {
		shell = source
	}

	return &container.Command{
		Path: shell,
		// A leading dash makes the shell read its login profile.
		Args: []string{"-" + filepath.Base(shell)},
		Dir:  home,
		Cred: cred,
	}, nil
}
