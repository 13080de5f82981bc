// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package container

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nullpo-head/wsl-distrod/internal/logging"
	"github.com/nullpo-head/wsl-distrod/internal/passwd"
	"github.com/nullpo-head/wsl-distrod/internal/proc"
)

// enterNamespaces is the order in which the container namespaces are
// joined. The mount namespace comes last so the others can still be
// opened through the host proc.
var enterNamespaces = [3]string{"uts", "pid", "mnt"}

// Command describes a process to run inside a container. Args is the
// full argv; its first element may differ from Path to follow the
// login shell naming convention.
type Command struct {
	Path string
	Args []string
	Dir  string
	Envs []string
	Cred *passwd.Credential
}

// Exec runs the command inside the container with the credential it
// carries and returns its exit code. The terminal of the calling
// process stays attached to the command.
func (c *Container) Exec(command *Command) (int, error) {
	alive, err := proc.Default.Process(c.InitPID).Alive()
	if err != nil {
		return 0, fmt.Errorf("inspect container init: %w", err)
	}

	if !alive {
		return 0, fmt.Errorf("init PID %d: %w", c.InitPID, ErrNotRunning)
	}

	cred := command.Cred
	if cred == nil {
		cred = passwd.NewCredential(0, 0, nil)
	}

	payload := &enterPayload{
		InitPID:  c.InitPID,
		Path:     command.Path,
		Args:     command.Args,
		Dir:      command.Dir,
		Envs:     command.Envs,
		UID:      cred.UID,
		GID:      cred.GID,
		Groups:   cred.Groups,
		LogLevel: logging.CurrentLevel(),
	}

	helper, err := reexecCommand(modeEnter, payload)
	if err != nil {
		return 0, err
	}

	readyR, readyW, err := os.Pipe()
	if err != nil {
		closeChildFiles(helper)

		return 0, fmt.Errorf("create ready pipe: %w", err)
	}
	defer readyR.Close()

	helper.ExtraFiles = append(helper.ExtraFiles, readyW)
	helper.Stdin = os.Stdin
	helper.Stdout = os.Stdout
	helper.Stderr = os.Stderr

	if err := helper.Start(); err != nil {
		closeChildFiles(helper)

		return 0, fmt.Errorf("start enter helper: %w", err)
	}

	closeChildFiles(helper)

	waitErr := helper.Wait()

	// Without the ready byte the helper died before it reached the
	// container, typically because the container stopped.
	var confirm [1]byte
	if n, _ := readyR.Read(confirm[:]); n == 0 {
		return 0, fmt.Errorf(
			"enter container of init %d: %w", c.InitPID, ErrNotRunning,
		)
	}

	var exitErr *exec.ExitError

	switch {
	case waitErr == nil:
		return 0, nil
	case errors.As(waitErr, &exitErr):
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return exitStatus(status), nil
		}

		return exitErr.ExitCode(), nil
	default:
		return 0, fmt.Errorf("run command in container: %w", waitErr)
	}
}

// exitStatus maps a wait status to the shell convention, 128 plus the
// signal number for a signaled process.
func exitStatus(status syscall.WaitStatus) int {
	if status.Signaled() {
		return 128 + int(status.Signal())
	}

	return status.ExitStatus()
}

// enterStage joins the namespaces of a running container and runs the
// requested command there, relaying its exit status.
func enterStage() int {
	var payload enterPayload
	if err := readPayload(&payload); err != nil {
		fmt.Fprintln(os.Stderr, "distrod:", err)

		return 1
	}

	_ = logging.Configure(os.Stderr, payload.LogLevel)

	status, err := runEnterStage(&payload)
	if err != nil {
		slog.Error("entering the container failed", "error", err)

		return 1
	}

	return status
}

func runEnterStage(payload *enterPayload) (int, error) {
	// The ready pipe belongs to the relay. The command must not
	// inherit it, or a daemon it leaves behind could hold it open.
	unix.CloseOnExec(readyFD)

	// Namespace transitions apply to the OS thread, so the command
	// must be forked from the thread which performed them.
	runtime.LockOSThread()

	// setns refuses to switch the mount namespace of a thread sharing
	// filesystem state, and the Go runtime clones with CLONE_FS.
	if err := unix.Unshare(unix.CLONE_FS); err != nil {
		return 0, fmt.Errorf("unshare filesystem state: %w", err)
	}

	initProc := proc.Default.Process(payload.InitPID)

	// Open every namespace before joining the first one. Once the
	// mount namespace switches, the host proc is out of reach.
	var files [len(enterNamespaces)]*os.File

	for i, kind := range enterNamespaces {
		file, err := os.Open(initProc.NamespacePath(kind))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotRunning, err)
		}
		defer file.Close()

		files[i] = file
	}

	for i, kind := range enterNamespaces {
		if err := unix.Setns(int(files[i].Fd()), 0); err != nil {
			return 0, fmt.Errorf("join %s namespace of pid %d: %w",
				kind, payload.InitPID, err)
		}
	}

	cmd := exec.Command(payload.Path)
	cmd.Args = payload.Args
	cmd.Dir = payload.Dir
	cmd.Env = payload.Envs
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid:    uint32(payload.UID),
			Gid:    uint32(payload.GID),
			Groups: uint32Groups(payload.Groups),
		},
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("run %s: %w", payload.Path, err)
	}

	confirmEntered()

	// The command owns the terminal now. Interrupts for its
	// foreground group must not kill the relay before it collects the
	// exit status. The command itself was forked with the default
	// dispositions.
	signal.Ignore(os.Interrupt, syscall.SIGQUIT)

	err := cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return exitStatus(status), nil
		}

		return exitErr.ExitCode(), nil
	}

	if err != nil {
		return 0, fmt.Errorf("wait for %s: %w", payload.Path, err)
	}

	return 0, nil
}

// confirmEntered tells the parent that the command started inside the
// container, so a later nonzero status is the command's own.
func confirmEntered() {
	file := os.NewFile(readyFD, "ready")
	if file == nil {
		return
	}

	_, _ = file.Write([]byte{1})
	_ = file.Close()
}

func uint32Groups(groups []int) []uint32 {
	converted := make([]uint32, len(groups))
	for i, gid := range groups {
		converted[i] = uint32(gid)
	}

	return converted
}
