// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package alias

import (
	"fmt"

	"github.com/nullpo-head/wsl-distrod/internal/passwd"
)

// EnableShellHook rewrites every login shell in the passwd database
// at passwdPath to its alias link, creating the links as hard links
// of execPath. New WSL sessions then start through the exec bridge.
// On failure the database is left untouched, though links created so
// far remain; a second run picks them up.
func EnableShellHook(store *Store, passwdPath, execPath string) error {
	file, err := passwd.Open(passwdPath)
	if err != nil {
		return err
	}

	var hookErr error

	file.Update(func(entry passwd.Entry) *passwd.Entry {
		if hookErr != nil || entry.Shell == "" || store.IsAlias(entry.Shell) {
			return nil
		}

		linkPath, err := store.Ensure(entry.Shell, execPath)
		if err != nil {
			hookErr = fmt.Errorf("alias shell of %s: %w", entry.Name, err)

			return nil
		}

		entry.Shell = linkPath

		return &entry
	})

	if hookErr != nil {
		return hookErr
	}

	return file.Save()
}

// DisableShellHook restores the original login shells in the passwd
// database at passwdPath. Entries which do not point into the alias
// directory are left alone.
func DisableShellHook(store *Store, passwdPath string) error {
	file, err := passwd.Open(passwdPath)
	if err != nil {
		return err
	}

	file.Update(func(entry passwd.Entry) *passwd.Entry {
		sourcePath, err := store.SourcePath(entry.Shell)
		if err != nil {
			return nil
		}

		entry.Shell = sourcePath

		return &entry
	})

	return file.Save()
}
