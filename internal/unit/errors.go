// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package unit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicSymlink is returned when a unit file symlink chain
	// visits the same path twice.
	ErrCyclicSymlink = errors.New("cyclic unit file symlink")

	// ErrUnsafeSymlink is returned when a unit file symlink points
	// outside the rootfs.
	ErrUnsafeSymlink = errors.New("unit file symlink leaves the rootfs")

	// ErrUnknownJournalOp is returned when the patch journal contains
	// an operation this version does not know.
	ErrUnknownJournalOp = errors.New("unknown journal operation")
)

// PatchError wraps the failure to patch a single unit.
type PatchError struct {
	Unit string
	Err  error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch unit %s: %v", e.Unit, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// PatchErrors aggregates per unit failures so one broken unit does
// not hide what happened to the others.
type PatchErrors struct {
	Errs []*PatchError
}

func (e *PatchErrors) append(unit string, err error) {
	e.Errs = append(e.Errs, &PatchError{Unit: unit, Err: err})
}

func (e *PatchErrors) Error() string {
	names := make([]string, len(e.Errs))
	for i, patchErr := range e.Errs {
		names[i] = patchErr.Unit
	}

	return fmt.Sprintf("failed to patch units: %s", strings.Join(names, ", "))
}

func (e *PatchErrors) Unwrap() []error {
	errs := make([]error, len(e.Errs))
	for i, patchErr := range e.Errs {
		errs[i] = patchErr
	}

	return errs
}
