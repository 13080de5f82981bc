// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package unit disables systemd units inside a rootfs which are known
// to conflict with the WSL managed network, in a way that can be
// undone later.
package unit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/mounts"
)

// maskTarget is the symlink target systemd treats as a masked unit.
const maskTarget = "/dev/null"

// backupSuffix is appended to unit files which are disabled by
// renaming, so that Revert can restore them.
const backupSuffix = ".distrod-disabled"

// Patcher disables and masks units inside a rootfs, keeping a journal
// of every change so the rootfs can be restored.
type Patcher struct {
	rootfs  string
	journal *journal
}

// NewPatcher returns a Patcher for the rootfs, loading the journal of
// earlier patches when one exists.
func NewPatcher(rootfsPath string) (*Patcher, error) {
	journal, err := openJournal(filepath.Join(rootfsPath, journalPath))
	if err != nil {
		return nil, fmt.Errorf("open unit patch journal: %w", err)
	}

	return &Patcher{
		rootfs:  rootfsPath,
		journal: journal,
	}, nil
}

// Apply disables and masks the units the rules name. Failures are
// collected per unit instead of aborting, since distributions vary in
// which units exist.
func (p *Patcher) Apply(rules config.UnitRules) error {
	var errs PatchErrors

	for _, name := range rules.Disable {
		if err := p.Disable(name); err != nil {
			errs.append(name, err)
		}
	}

	for _, name := range rules.Mask {
		if err := p.Mask(name); err != nil {
			errs.append(name, err)
		}
	}

	if len(errs.Errs) == 0 {
		return nil
	}

	return &errs
}

// Disable removes the unit from the service manager's load path the
// way systemctl disable does, including units its [Install] section
// names via Alias or Also. A unit which does not exist is a no-op.
func (p *Patcher) Disable(name string) error {
	resolved, err := p.resolve(p.unitPath(name))
	if err != nil {
		return err
	}

	var companions []string

	content, err := os.ReadFile(resolved)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No unit file, but stray symlinks carrying the name may
		// remain and are still swept below.
	case err != nil:
		return fmt.Errorf("read unit %s: %w", name, err)
	default:
		companions = installCompanions(parseUnitDirectives(string(content)))
	}

	before := len(p.journal.records)

	if err := p.removeUnitFiles(name); err != nil {
		return err
	}

	for _, companion := range companions {
		if err := p.Disable(companion); err != nil {
			return fmt.Errorf("disable companion unit of %s: %w", name, err)
		}
	}

	if len(p.journal.records) == before {
		return nil
	}

	return p.journal.save()
}

// Mask redirects the unit to /dev/null in the admin unit directory so
// the service manager ignores it even if the distribution ships it in
// its own unit directories.
func (p *Patcher) Mask(name string) error {
	unitPath := p.unitPath(name)

	if _, err := p.resolve(unitPath); err != nil {
		return err
	}

	if p.isMasked(name) {
		return nil
	}

	if err := p.removeUnitFiles(name); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return fmt.Errorf("mask unit %s: %w", name, err)
	}

	if err := os.Symlink(maskTarget, unitPath); err != nil {
		return fmt.Errorf("mask unit %s: %w", name, err)
	}

	p.journal.record(patchRecord{
		Op:   opMask,
		Unit: name,
		Path: p.rel(unitPath),
	})

	return p.journal.save()
}

// IsDisabled reports whether the unit is currently masked or has been
// removed by an earlier Disable.
func (p *Patcher) IsDisabled(name string) bool {
	if p.isMasked(name) {
		return true
	}

	if _, err := os.Lstat(p.unitPath(name)); errors.Is(err, fs.ErrNotExist) {
		return p.journal.has(name)
	}

	return false
}

// Revert undoes the journaled patches in reverse order. Files the
// user changed since patching are left alone. The journal is cleared
// only when every entry could be replayed.
func (p *Patcher) Revert() error {
	var errs PatchErrors

	records := p.journal.records
	for i := len(records) - 1; i >= 0; i-- {
		if err := p.revertRecord(records[i]); err != nil {
			errs.append(records[i].Unit, err)
		}
	}

	if len(errs.Errs) != 0 {
		return &errs
	}

	if err := p.journal.clear(); err != nil {
		return fmt.Errorf("clear unit patch journal: %w", err)
	}

	return nil
}

func (p *Patcher) revertRecord(record patchRecord) error {
	path := filepath.Join(p.rootfs, record.Path)

	switch record.Op {
	case opMask:
		target, err := os.Readlink(path)
		if err != nil || target != maskTarget {
			return nil
		}

		return os.Remove(path)

	case opRemoveSymlink:
		if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return os.Symlink(record.Target, path)

	case opBackupFile:
		backup := filepath.Join(p.rootfs, record.Target)

		if _, err := os.Lstat(backup); err != nil {
			return nil
		}

		if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return os.Rename(backup, path)

	case opOverrideFile:
		err := os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		// Drop the .d directory too when the override was its only
		// content.
		_ = os.Remove(filepath.Dir(path))

		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownJournalOp, record.Op)
}

// removeUnitFiles takes the unit out of the admin unit directory,
// including symlinks in *.wants and *.requires directories. Regular
// files are renamed rather than deleted so Revert can restore them.
func (p *Patcher) removeUnitFiles(name string) error {
	root := p.unitDir()

	if _, err := os.Lstat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || d.Name() != name {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("remove unit symlink: %w", err)
			}

			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove unit symlink: %w", err)
			}

			p.journal.record(patchRecord{
				Op:     opRemoveSymlink,
				Unit:   name,
				Path:   p.rel(path),
				Target: target,
			})

			return nil
		}

		backup := path + backupSuffix

		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("back up unit file: %w", err)
		}

		p.journal.record(patchRecord{
			Op:     opBackupFile,
			Unit:   name,
			Path:   p.rel(path),
			Target: p.rel(backup),
		})

		return nil
	})
}

// resolve follows a chain of unit file symlinks one hop at a time.
// Absolute targets are reanchored inside the rootfs, and a repeating
// path fails instead of looping.
func (p *Patcher) resolve(path string) (string, error) {
	visited := make(map[string]bool)

	for {
		if visited[path] {
			return "", fmt.Errorf("%s: %w", path, ErrCyclicSymlink)
		}
		visited[path] = true

		if !mounts.Within(path, p.rootfs) {
			return "", fmt.Errorf("%s: %w", path, ErrUnsafeSymlink)
		}

		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}

		if err != nil {
			return "", fmt.Errorf("resolve unit file: %w", err)
		}

		if info.Mode()&fs.ModeSymlink == 0 {
			return path, nil
		}

		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("resolve unit file: %w", err)
		}

		if filepath.IsAbs(target) {
			path = filepath.Join(p.rootfs, target)
		} else {
			path = filepath.Join(filepath.Dir(path), target)
		}
	}
}

func (p *Patcher) isMasked(name string) bool {
	target, err := os.Readlink(p.unitPath(name))

	return err == nil && target == maskTarget
}

func (p *Patcher) unitDir() string {
	return filepath.Join(p.rootfs, "etc/systemd/system")
}

func (p *Patcher) unitPath(name string) string {
	return filepath.Join(p.unitDir(), name)
}

func (p *Patcher) rel(path string) string {
	rel, err := filepath.Rel(p.rootfs, path)
	if err != nil {
		return path
	}

	return rel
}
