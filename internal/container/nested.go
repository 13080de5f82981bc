// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package container

import (
	"github.com/nullpo-head/wsl-distrod/internal/mounts"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

// IsNested reports whether this process already runs inside a distrod
// container. Two signals decide. The marker mount keeping the host
// root reachable is visible only inside a container, and the instance
// record must load cleanly, which it only does from the host session.
// When a signal cannot be read, the answer is the safe one: managing
// containers from inside one would corrupt the host session.
func IsNested(store *state.Store) bool {
	entries, err := mounts.Current()
	if err != nil {
		return true
	}

	_, loadErr := store.Load()

	return isNested(entries, loadErr)
}

func isNested(entries []mounts.Entry, loadErr error) bool {
	if loadErr != nil {
		return true
	}

	for _, entry := range entries {
		if mounts.Within(entry.Path, OldRootPath) {
			return true
		}
	}

	return false
}
