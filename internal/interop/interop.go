// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package interop captures the environment WSL maintains for a session
// and publishes it to the bridge files the container sessions read.
package interop

import (
	"fmt"
	"regexp"

	"github.com/nullpo-head/wsl-distrod/internal/proc"
)

// Names of the environment variables WSL maintains for interop,
// including the display endpoints WSLg sets for GUI sessions.
const (
	EnvWSLEnv         = "WSLENV"
	EnvWSLDistroName  = "WSL_DISTRO_NAME"
	EnvWSLInterop     = "WSL_INTEROP"
	EnvDisplay        = "DISPLAY"
	EnvWaylandDisplay = "WAYLAND_DISPLAY"
)

var wslEnvNames = []string{
	EnvWSLEnv,
	EnvWSLDistroName,
	EnvWSLInterop,
	EnvDisplay,
	EnvWaylandDisplay,
}

// Capture returns the WSL environment variables of the session. Sudo
// strips them from the own environment, so ancestor processes are
// searched until a process carrying them is found.
func Capture() (map[string]string, error) {
	return capture(proc.Default.Self())
}

func capture(process *proc.Process) (map[string]string, error) {
	for {
		env, err := process.Environ()
		if err != nil {
			return nil, fmt.Errorf("capture WSL environment: %w", err)
		}

		found := make(map[string]string)

		for _, name := range wslEnvNames {
			if value, ok := env[name]; ok {
				found[name] = value
			}
		}

		if len(found) > 0 {
			return found, nil
		}

		if process.PID() == 1 {
			break
		}

		parent, err := process.Parent()
		if err != nil {
			return nil, fmt.Errorf("capture WSL environment: %w", err)
		}

		if parent == nil {
			break
		}

		process = parent
	}

	return nil, ErrNoWSLEnvironment
}

// DistroName returns the name WSL registered for this distribution.
func DistroName() (string, error) {
	env, err := Capture()
	if err != nil {
		return "", err
	}

	name, ok := env[EnvWSLDistroName]
	if !ok {
		return "", fmt.Errorf("%s: %w", EnvWSLDistroName, ErrNoWSLEnvironment)
	}

	return name, nil
}

var (
	interopSocketPattern = regexp.MustCompile(`^/run/WSL/[0-9]+_interop$`)
	harmlessValuePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-./:]*$`)
)

// SaneForSystem reports whether the value of the named WSL variable is
// harmless enough to be written to system wide files and passed to
// systemd services. The values may be polluted because distrod-exec
// can be launched by any user.
func SaneForSystem(key, value string) bool {
	if key == EnvWSLInterop {
		return interopSocketPattern.MatchString(value)
	}

	return harmlessValuePattern.MatchString(value)
}
