// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package interop

import "errors"

var (
	// ErrNoWSLEnvironment is returned when no process in the ancestor
	// chain carries the WSL environment variables.
	ErrNoWSLEnvironment = errors.New("couldn't find WSL envs")

	// ErrUntrustedScript is returned when an existing env bridge script
	// is not owned by root or the user it is published for.
	ErrUntrustedScript = errors.New("env bridge script has untrusted ownership")
)
