// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package distro ties the container machinery to WSL. It assembles
// the launch of a distribution rootfs, bridges the interop
// environment into it and addresses the instance running in this
// host session.
package distro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/envfile"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/passwd"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// Distro is a handle to the running distribution container of this
// host session.
type Distro struct {
	rootfsPath string
	container  *container.Container
	store      *state.Store
}

// GetRunning returns the running distro, or nil when none is.
func GetRunning(store *state.Store) (*Distro, error) {
	record, err := store.Load()
	if err != nil {
		return nil, err
	}

	if record == nil {
		return nil, nil
	}

	c, err := container.FromPID(record.InitPID)
	if errors.Is(err, container.ErrNotRunning) {
		// The init went away since the record was validated.
		return nil, store.Clear()
	}

	if err != nil {
		return nil, err
	}

	return &Distro{
		rootfsPath: record.RootfsPath,
		container:  c,
		store:      store,
	}, nil
}

// EnsureRunning returns the running distro, launching rootfsPath when
// none is. An empty rootfsPath boots the configured default image,
// falling back to the host rootfs.
func EnsureRunning(
	ctx context.Context, store *state.Store, rootfsPath string,
) (*Distro, error) {
	running, err := GetRunning(store)
	if err != nil || running != nil {
		return running, err
	}

	if rootfsPath == "" {
		rootfsPath, err = DefaultRootfs()
		if err != nil {
			return nil, err
		}
	}

	return NewLauncher(store).Launch(ctx, rootfsPath)
}

// DefaultRootfs returns the rootfs to boot when none is given, the
// configured default image or the host rootfs.
func DefaultRootfs() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}

	if cfg.DefaultDistroImage != "" {
		return cfg.DefaultDistroImage, nil
	}

	return "/", nil
}

// RootfsPath returns the rootfs the distro was booted from.
func (d *Distro) RootfsPath() string {
	return d.rootfsPath
}

// InitPID returns the PID of the container init in the host PID
// namespace.
func (d *Distro) InitPID() int {
	return d.container.InitPID
}

// Exec runs the command inside the distro and returns its exit code.
func (d *Distro) Exec(command *container.Command) (int, error) {
	return d.container.Exec(command)
}

// Stop shuts the distro down and clears the instance record once the
// init is gone. The context bounds how long the shutdown may take.
func (d *Distro) Stop(ctx context.Context, sigkill bool) error {
	if err := d.container.Stop(sigkill); err != nil {
		return err
	}

	if err := d.container.WaitStopped(ctx); err != nil {
		return fmt.Errorf("container did not shut down: %w", err)
	}

	return d.store.Clear()
}

// PublishBridge captures the WSL environment of this session and
// publishes the bridge script tier for the credential, so logins
// inside the container see the interop variables.
func PublishBridge(cred *passwd.Credential) error {
	envs, err := interop.Capture()
	if err != nil {
		return err
	}

	winPaths, err := interop.WindowsPaths()
	if err != nil {
		slog.Warn("no Windows PATH members for the bridge", "error", err)
	}

	// Root's tier is shared with every session, so it only takes
	// values that are safe to hand to arbitrary users.
	sanitize := cred.UID == 0

	_, err = interop.Publish(bridgeScript(envs, winPaths, sanitize), cred.UID, cred.GID)

	return err
}

func bridgeScript(
	envs map[string]string, winPaths []string, sanitize bool,
) *envfile.ShellScript {
	script := envfile.NewShellScript()

	for key, value := range envs {
		if sanitize && !interop.SaneForSystem(key, value) {
			slog.Warn("dropping unsafe WSL variable", "key", key)
			continue
		}

		script.PutEnv(key, value)
	}

	for _, path := range winPaths {
		script.PutPath(path)
	}

	script.PutPath(config.BinDir)

	return script
}

// initPath returns the init of the rootfs as seen from the host.
func initPath(rootfsPath string) string {
	return filepath.Join(rootfsPath, "sbin/init")
}
