// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Helper stages run in or into the container namespaces. A distrod
// binary re-executes itself with one of these as its sole argument,
// because Go programs cannot fork without exec.
const (
	modeInit  = "ns-init"
	modeEnter = "ns-enter"
)

const selfExePath = "/proc/self/exe"

// Helper stages inherit two pipes. The payload pipe carries the JSON
// stage configuration, which keeps it off the command line of setuid
// binaries. The enter stage reports on the ready pipe that it reached
// the container namespaces before running the command.
const (
	payloadFD = 3
	readyFD   = 4
)

// initPayload configures the ns-init stage, PID 1 of the fresh
// namespaces, which prepares the container filesystem and execs the
// guest init.
type initPayload struct {
	Init     string   `json:"init"`
	Args     []string `json:"args,omitempty"`
	Envs     []string `json:"envs,omitempty"`
	Rootfs   string   `json:"rootfs"`
	OldRoot  string   `json:"old_root"`
	Mounts   []Mount  `json:"mounts,omitempty"`
	LogLevel string   `json:"log_level,omitempty"`
}

// enterPayload configures the ns-enter stage, which joins the
// namespaces of a running container and runs a command there.
type enterPayload struct {
	InitPID  int      `json:"init_pid"`
	Path     string   `json:"path"`
	Args     []string `json:"args"`
	Dir      string   `json:"dir,omitempty"`
	Envs     []string `json:"envs,omitempty"`
	UID      int      `json:"uid"`
	GID      int      `json:"gid"`
	Groups   []int    `json:"groups,omitempty"`
	LogLevel string   `json:"log_level,omitempty"`
}

// MaybeRunHelper runs this process as a namespace helper stage when
// it was re-executed as one and exits with the stage's status.
// Binaries which launch or enter containers must call it first thing
// in main, before argument parsing. Stages are recognized by the
// argv[0] the re-execution sets, so a stage name showing up as a user
// argument cannot hijack the process.
func MaybeRunHelper() {
	if len(os.Args) != 2 || os.Args[0] != selfExePath {
		return
	}

	switch os.Args[1] {
	case modeInit:
		os.Exit(initStage())
	case modeEnter:
		os.Exit(enterStage())
	}
}

// reexecCommand prepares the re-execution of this binary as the given
// helper stage, with the payload waiting on the inherited pipe.
func reexecCommand(mode string, payload any) (*exec.Cmd, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", mode, err)
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create payload pipe: %w", err)
	}

	// The payload is far below the pipe buffer size, so the write
	// completes before the stage starts reading.
	if _, err := writer.Write(data); err != nil {
		_ = reader.Close()
		_ = writer.Close()

		return nil, fmt.Errorf("write %s payload: %w", mode, err)
	}

	if err := writer.Close(); err != nil {
		_ = reader.Close()

		return nil, fmt.Errorf("write %s payload: %w", mode, err)
	}

	cmd := exec.Command(selfExePath, mode)
	cmd.ExtraFiles = []*os.File{reader}

	return cmd, nil
}

// closeChildFiles releases the parent's copies of the inherited pipe
// ends once the stage has started.
func closeChildFiles(cmd *exec.Cmd) {
	for _, file := range cmd.ExtraFiles {
		_ = file.Close()
	}

	cmd.ExtraFiles = nil
}

// readPayload decodes the stage configuration from the inherited
// payload pipe.
func readPayload(v any) error {
	file := os.NewFile(payloadFD, "payload")
	if file == nil {
		return errors.New("payload pipe is not open")
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("decode stage payload: %w", err)
	}

	return nil
}
