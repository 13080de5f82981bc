// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package distro

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/envfile"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// containerInit is the init booted inside the container. Distribution
// images install it as a symlink to systemd.
const containerInit = "/sbin/init"

// abortTimeout bounds how long a failed launch may take to tear its
// container down again.
const abortTimeout = 10 * time.Second

// Launcher boots a distribution rootfs as a container in this host
// session.
type Launcher struct {
	store *state.Store
}

// NewLauncher returns a Launcher recording the instance in store.
func NewLauncher(store *state.Store) *Launcher {
	return &Launcher{store: store}
}

// Launch boots the rootfs and publishes the instance record. When a
// concurrent launch wins the record race, the own container is torn
// down again and the surviving one is returned.
func (l *Launcher) Launch(ctx context.Context, rootfsPath string) (*Distro, error) {
	rootfs, err := canonicalRootfs(rootfsPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(initPath(rootfs)); err != nil {
		return nil, fmt.Errorf("%s: %w", rootfs, ErrNoInit)
	}

	slog.Info("launching distro", "rootfs", rootfs)

	session := captureSession()

	winPaths, err := interop.WindowsPaths()
	if err != nil {
		slog.Warn("no Windows PATH members found", "error", err)
	}

	if err := writeSystemEnvFile(rootfs, session, winPaths); err != nil {
		return nil, err
	}

	// The shared bridge tier, so logins of any user see the interop
	// variables even before their own tier exists.
	if _, err := interop.Publish(bridgeScript(session, winPaths, true), 0, 0); err != nil {
		slog.Warn("cannot publish the env bridge script", "error", err)
	}

	c, err := l.launchContainer(ctx, rootfs, session)
	if err != nil {
		return nil, err
	}

	record := &state.Record{
		RootfsPath:      rootfs,
		InitPID:         c.InitPID,
		InitStarttime:   c.InitStarttime,
		CreatedAt:       time.Now().UTC(),
		MountMarkerPath: filepath.Join(rootfs, container.OldRootPath),
	}

	if err := l.store.Save(record); err != nil {
		abort(c)

		if errors.Is(err, state.ErrConflict) {
			slog.Info("another launch won the race, joining its container")

			return GetRunning(l.store)
		}

		return nil, err
	}

	return &Distro{
		rootfsPath: rootfs,
		container:  c,
		store:      l.store,
	}, nil
}

func (l *Launcher) launchContainer(
	ctx context.Context, rootfs string, session map[string]string,
) (*container.Container, error) {
	launcher := container.NewLauncher().
		WithInitEnv("container", "distrod").
		WithInitArg("--unit=multi-user.target")

	for _, key := range slices.Sorted(maps.Keys(session)) {
		value := session[key]
		if !interop.SaneForSystem(key, value) {
			slog.Warn("not passing unsafe WSL variable to init", "key", key)
			continue
		}

		launcher.WithInitArg(fmt.Sprintf("systemd.setenv=%s=%s", key, value))
	}

	if err := os.MkdirAll(config.RuntimeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create runtime directory: %w", err)
	}

	for _, mount := range wslMounts() {
		launcher.WithMount(mount)
	}

	for _, mount := range overlayMounts(config.RunOverlayDir) {
		launcher.WithMount(mount)
	}

	return launcher.Launch(ctx, containerInit, rootfs)
}

// abort tears down a container that lost the record race or cannot be
// recorded.
func abort(c *container.Container) {
	if err := c.Stop(true); err != nil {
		slog.Warn("cannot stop discarded container", "error", err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()

	if err := c.WaitStopped(ctx); err != nil {
		slog.Warn("discarded container still shutting down", "error", err)
	}
}

// captureSession returns the WSL variables of this session. Running
// without them is degraded but workable, so failure only warns.
func captureSession() map[string]string {
	session, err := interop.Capture()
	if err != nil {
		slog.Warn("no WSL environment found to bridge", "error", err)

		return map[string]string{}
	}

	return session
}

func canonicalRootfs(rootfsPath string) (string, error) {
	abs, err := filepath.Abs(rootfsPath)
	if err != nil {
		return "", fmt.Errorf("resolve rootfs path: %w", err)
	}

	rootfs, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve rootfs path: %w", err)
	}

	return rootfs, nil
}

// writeSystemEnvFile merges the session variables and the Windows
// PATH members into /etc/environment of the rootfs, which pam_env
// hands to every session systemd spawns.
func writeSystemEnvFile(
	rootfsPath string, session map[string]string, winPaths []string,
) error {
	file, err := envfile.Open(filepath.Join(rootfsPath, "etc/environment"))
	if err != nil {
		return err
	}

	for _, key := range slices.Sorted(maps.Keys(session)) {
		value := session[key]
		if !interop.SaneForSystem(key, value) {
			slog.Warn("not exporting unsafe WSL variable", "key", key)
			continue
		}

		if err := file.Put(key, value); err != nil {
			return err
		}
	}

	for _, path := range winPaths {
		file.PutPath(path)
	}

	file.PutPath(config.BinDir)

	return file.Write()
}

// wslMounts lists the host paths WSL maintains which the container
// needs bound at the same place, plus the runtime directory so bridge
// scripts published later reach running containers.
func wslMounts() []container.Mount {
	type bind struct {
		path   string
		isFile bool
	}

	binds := []bind{
		{"/init", true},
		{"/sys", false},
		{"/dev", false},
		{"/mnt/wsl", false},
		{"/run/WSL", false},
		{"/etc/wsl.conf", true},
		{"/etc/resolv.conf", true},
		{"/proc/sys/fs/binfmt_misc", false},
	}

	drives, err := interop.DriveMounts()
	if err != nil {
		slog.Warn("not mounting Windows drives", "error", err)
	}

	for _, drive := range drives {
		binds = append(binds, bind{drive, false})
	}

	binds = append(binds, bind{config.RuntimeDir, false})

	var plan []container.Mount

	for _, b := range binds {
		if _, err := os.Stat(b.path); err != nil {
			slog.Debug("not mounting absent WSL path", "path", b.path)
			continue
		}

		plan = append(plan, container.Mount{
			Source: b.path,
			Target: b.path,
			Flags:  unix.MS_BIND,
			IsFile: b.isFile,
		})
	}

	return plan
}

// overlayMounts lists the static files below the run overlay
// directory, each bound to the matching path under /run of the
// container.
func overlayMounts(overlayDir string) []container.Mount {
	var plan []container.Mount

	walk := func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.Type().IsRegular() {
			return nil //nolint:nilerr // a missing overlay is fine
		}

		rel, err := filepath.Rel(overlayDir, path)
		if err != nil {
			return nil //nolint:nilerr
		}

		plan = append(plan, container.Mount{
			Source: path,
			Target: filepath.Join("/run", rel),
			Flags:  unix.MS_BIND,
			IsFile: true,
		})

		return nil
	}

	_ = filepath.WalkDir(overlayDir, walk)

	return plan
}
