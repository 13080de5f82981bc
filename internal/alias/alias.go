// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package alias manages the command bridge links under the alias
// directory. An alias link mirrors the path of a host command, like
// alias/bin/bash for /bin/bash, and is a hard link of the exec
// bridge binary. A process started through one sees the alias path
// in /proc/self/exe and can recover the command it stands in for.
package alias

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/mounts"
)

// Store manages the alias links below one directory.
type Store struct {
	dir string
}

// NewStore returns a Store over the given alias directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Default returns the Store over the installed alias directory.
func Default() *Store {
	return NewStore(config.AliasDir)
}

// IsAlias reports whether path names a link inside the alias
// directory.
func (s *Store) IsAlias(path string) bool {
	return path != s.dir && mounts.Within(path, s.dir)
}

// LinkPath returns the path of the alias link standing in for the
// command at sourcePath.
func (s *Store) LinkPath(sourcePath string) (string, error) {
	if !filepath.IsAbs(sourcePath) {
		return "", fmt.Errorf("%s: %w", sourcePath, ErrSourceNotAbsolute)
	}

	return filepath.Join(s.dir, strings.TrimPrefix(sourcePath, "/")), nil
}

// SourcePath returns the command path an alias link stands in for.
// The command itself may no longer exist; the caller finds out when
// it executes it.
func (s *Store) SourcePath(linkPath string) (string, error) {
	if !s.IsAlias(linkPath) {
		return "", fmt.Errorf("%s: %w", linkPath, ErrNotAlias)
	}

	rel, err := filepath.Rel(s.dir, linkPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", linkPath, ErrNotAlias)
	}

	return filepath.Join("/", rel), nil
}

// Ensure creates the alias link for sourcePath as a hard link of
// execPath, creating parent directories as needed. An existing link
// is kept. A hard link is required rather than a symlink, since
// /proc/self/exe would resolve a symlink back to execPath and the
// alias path would be lost.
func (s *Store) Ensure(sourcePath, execPath string) (string, error) {
	linkPath, err := s.LinkPath(sourcePath)
	if err != nil {
		return "", err
	}

	if _, err := os.Lstat(linkPath); err == nil {
		return linkPath, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("probe alias link: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return "", fmt.Errorf("create alias directory: %w", err)
	}

	if err := os.Link(execPath, linkPath); err != nil {
		return "", fmt.Errorf("create alias link: %w", err)
	}

	return linkPath, nil
}
