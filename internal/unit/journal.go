// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package unit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// journalPath is where the patch journal lives, relative to the
// rootfs. It sits inside the rootfs so it travels with it.
const journalPath = "var/lib/distrod/unit-patches.json"

type operation string

const (
	opMask          operation = "mask"
	opRemoveSymlink operation = "rm-symlink"
	opBackupFile    operation = "backup-file"
	opOverrideFile  operation = "override-file"
)

// patchRecord describes one filesystem change the patcher made. Paths
// are relative to the rootfs.
type patchRecord struct {
	Op     operation `json:"op"`
	Unit   string    `json:"unit"`
	Path   string    `json:"path"`
	Target string    `json:"target,omitempty"`
}

type journal struct {
	path    string
	records []patchRecord
}

func openJournal(path string) (*journal, error) {
	journal := &journal{path: path}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return journal, nil
	}

	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, &journal.records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return journal, nil
}

func (j *journal) record(record patchRecord) {
	j.records = append(j.records, record)
}

func (j *journal) has(unit string) bool {
	for _, record := range j.records {
		if record.Unit == unit {
			return true
		}
	}

	return false
}

// save writes the journal atomically so a crash cannot leave a
// half-written journal behind.
func (j *journal) save() error {
	content, err := json.Marshal(j.records)
	if err != nil {
		return fmt.Errorf("encode unit patch journal: %w", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save unit patch journal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".unit-patches-*")
	if err != nil {
		return fmt.Errorf("save unit patch journal: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("save unit patch journal: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save unit patch journal: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("save unit patch journal: %w", err)
	}

	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("save unit patch journal: %w", err)
	}

	return nil
}

func (j *journal) clear() error {
	j.records = nil

	err := os.Remove(j.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}
