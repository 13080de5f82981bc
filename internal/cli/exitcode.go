// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// Process exit codes. Scripts driving distrod match on them, so they
// are part of the command line contract.
const (
	exitFailure         = 1
	exitNested          = 3
	exitInitDidNotStart = 4
	exitNotRunning      = 5
	exitConflict        = 6
	exitPermission      = 7
)

// exitStatusError relays the exit status of a command run inside the
// container as the distrod exit code. It is not a failure of distrod
// itself and is not reported as one.
type exitStatusError int

func (e exitStatusError) Error() string {
	return fmt.Sprintf("command exited with status %d", int(e))
}

// exitCodeFor maps an error escaping a command to the process exit
// code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, container.ErrNested):
		return exitNested
	case errors.Is(err, container.ErrInitDidNotStart):
		return exitInitDidNotStart
	case errors.Is(err, container.ErrNotRunning):
		return exitNotRunning
	case errors.Is(err, state.ErrConflict):
		return exitConflict
	case errors.Is(err, ErrRootRequired),
		errors.Is(err, state.ErrUntrustedRecord),
		errors.Is(err, interop.ErrUntrustedScript),
		errors.Is(err, config.ErrNotOwnedByRoot),
		errors.Is(err, fs.ErrPermission):
		return exitPermission
	default:
		return exitFailure
	}
}
