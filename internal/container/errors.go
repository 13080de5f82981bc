// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package container

import "errors"

var (
	// ErrInitDidNotStart is returned when the guest init process dies
	// during startup or never opens its manager socket.
	ErrInitDidNotStart = errors.New("the container init did not start")

	// ErrNotRunning is returned when an operation addresses a
	// container whose init process is gone.
	ErrNotRunning = errors.New("no container is running")

	// ErrNested is returned when a command which manages containers
	// is invoked inside one.
	ErrNested = errors.New("already running inside a container")
)
