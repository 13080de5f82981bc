// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package container creates and enters the namespace environment
// hosting the guest init process.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/logging"
	"github.com/nullpo-head/wsl-distrod/internal/proc"
)

// OldRootPath is where the host root stays reachable inside the
// container. A process which sees it in its mount table is running
// inside a container.
const OldRootPath = "/mnt/distrod_root"

// initReadyPath is the management socket of the guest init, relative
// to its root. It appears once the init accepts requests.
const initReadyPath = "run/systemd/private"

const (
	probeAttempts = 50
	probeInterval = 100 * time.Millisecond
)

// Mount describes one mount to set up inside the new mount namespace
// before the init process starts. An empty Source mounts a fresh
// instance of FSType.
type Mount struct {
	Source string  `json:"source,omitempty"`
	Target string  `json:"target"`
	FSType string  `json:"fstype,omitempty"`
	Flags  uintptr `json:"flags,omitempty"`
	Data   string  `json:"data,omitempty"`
	IsFile bool    `json:"is_file,omitempty"`
}

// Launcher accumulates the configuration of a new container.
type Launcher struct {
	mounts   []Mount
	initEnvs []string
	initArgs []string
}

// NewLauncher returns an empty Launcher.
func NewLauncher() *Launcher {
	return &Launcher{}
}

// WithMount adds a mount to set up before the init process starts.
func (l *Launcher) WithMount(mount Mount) *Launcher {
	slog.Debug("adding container mount",
		"source", mount.Source,
		"target", mount.Target,
		"fstype", mount.FSType,
		"is_file", mount.IsFile,
	)

	l.mounts = append(l.mounts, mount)

	return l
}

// WithInitArg adds an argument passed to the init process.
func (l *Launcher) WithInitArg(arg string) *Launcher {
	l.initArgs = append(l.initArgs, arg)

	return l
}

// WithInitEnv adds an environment variable for the init process. The
// init never inherits the launcher's own environment, which may come
// from a non-root user.
func (l *Launcher) WithInitEnv(key, value string) *Launcher {
	l.initEnvs = append(l.initEnvs, key+"="+value)

	return l
}

// Launch starts init inside fresh mount, PID and UTS namespaces on
// the given rootfs and waits until it accepts manager connections.
// The init process keeps running after this process exits.
func (l *Launcher) Launch(ctx context.Context, init, rootfsPath string) (*Container, error) {
	payload := &initPayload{
		Init:     init,
		Args:     l.initArgs,
		Envs:     l.initEnvs,
		Rootfs:   rootfsPath,
		OldRoot:  OldRootPath,
		Mounts:   l.mounts,
		LogLevel: logging.CurrentLevel(),
	}

	cmd, err := reexecCommand(modeInit, payload)
	if err != nil {
		return nil, err
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS,
		Setsid:     true,
	}

	if err := cmd.Start(); err != nil {
		closeChildFiles(cmd)

		return nil, fmt.Errorf("start init process: %w", err)
	}

	closeChildFiles(cmd)

	pid := cmd.Process.Pid
	initProc := proc.Default.Process(pid)

	abort := func(err error) (*Container, error) {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()

		return nil, err
	}

	if err := waitForInit(ctx, initProc); err != nil {
		return abort(err)
	}

	stat, err := initProc.Stat()
	if err != nil {
		return abort(fmt.Errorf("%w: %v", ErrInitDidNotStart, err))
	}

	if err := cmd.Process.Release(); err != nil {
		return abort(fmt.Errorf("detach from init process: %w", err))
	}

	slog.Info("container init is up", "pid", pid)

	return &Container{
		InitPID:       pid,
		InitStarttime: stat.Starttime,
	}, nil
}

// waitForInit polls until the guest init opens its manager socket.
func waitForInit(ctx context.Context, initProc *proc.Process) error {
	for attempt := 0; attempt < probeAttempts; attempt++ {
		alive, err := initProc.Alive()
		if err != nil {
			return fmt.Errorf("probe init process: %w", err)
		}

		if !alive {
			return fmt.Errorf(
				"%w: the init process exited during startup, check dmesg",
				ErrInitDidNotStart,
			)
		}

		if _, err := os.Stat(initProc.RootPath(initReadyPath)); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeInterval):
		}
	}

	return fmt.Errorf("%w: no manager socket within %v",
		ErrInitDidNotStart, probeAttempts*probeInterval)
}

// Container is a handle to a running container instance.
type Container struct {
	InitPID       int
	InitStarttime uint64
}

// FromPID returns a handle to the container whose init process has
// the given PID.
func FromPID(pid int) (*Container, error) {
	return fromPID(proc.Default, pid)
}

func fromPID(procFS proc.FS, pid int) (*Container, error) {
	process := procFS.Process(pid)

	alive, err := process.Alive()
	if err != nil {
		return nil, fmt.Errorf("inspect init process: %w", err)
	}

	if !alive {
		return nil, fmt.Errorf("init PID %d: %w", pid, ErrNotRunning)
	}

	stat, err := process.Stat()
	if err != nil {
		return nil, fmt.Errorf("init PID %d: %w", pid, ErrNotRunning)
	}

	return &Container{
		InitPID:       pid,
		InitStarttime: stat.Starttime,
	}, nil
}

// Stop signals the init process. The default SIGINT asks systemd for
// a clean shutdown, the way ctrl-alt-del does.
func (c *Container) Stop(sigkill bool) error {
	signal := unix.SIGINT
	if sigkill {
		signal = unix.SIGKILL
	}

	if err := unix.Kill(c.InitPID, signal); err != nil {
		return fmt.Errorf("signal init process %d: %w", c.InitPID, err)
	}

	return nil
}

// WaitStopped blocks until the init process is gone.
func (c *Container) WaitStopped(ctx context.Context) error {
	process := proc.Default.Process(c.InitPID)

	for {
		alive, err := process.Alive()
		if err != nil {
			return fmt.Errorf("wait for init process %d: %w", c.InitPID, err)
		}

		if !alive {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeInterval):
		}
	}
}
