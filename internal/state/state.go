// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package state persists the record of the running container so that
// independent distrod invocations agree on whether one exists.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/proc"
)

// Record describes the running container. The init starttime pins the
// record to one incarnation of the PID, so a recycled PID is not
// mistaken for the container's init.
type Record struct {
	RootfsPath      string    `json:"rootfs_path"`
	InitPID         int       `json:"init_pid"`
	InitStarttime   uint64    `json:"init_starttime"`
	CreatedAt       time.Time `json:"created_at"`
	MountMarkerPath string    `json:"mount_marker_path"`
}

// Store reads and writes the instance record of this host session.
type Store struct {
	path string
	proc proc.FS
}

// NewStore returns the store backed by the runtime directory.
func NewStore() *Store {
	return newStore(config.RunInfoPath, proc.Default)
}

func newStore(path string, procFS proc.FS) *Store {
	return &Store{
		path: path,
		proc: procFS,
	}
}

// Load returns the current record, or nil when no container is
// running. A record whose init is gone or got its PID recycled is
// cleared and reported as absent.
func (s *Store) Load() (*Record, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read instance record: %w", err)
	}

	if err := s.checkOwner(); err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(content, &record); err != nil {
		// A corrupt record cannot be trusted. Drop it so the next
		// start is not blocked forever.
		return nil, s.Clear()
	}

	stale, err := s.isStale(&record)
	if err != nil {
		return nil, err
	}

	if stale {
		return nil, s.Clear()
	}

	return &record, nil
}

// Save persists the record. It refuses to overwrite a record of a
// different, still live init process, so racing starters cannot
// orphan a just started container.
func (s *Store) Save(record *Record) error {
	current, err := s.Load()
	if err != nil {
		return err
	}

	if current != nil && current.InitPID != record.InitPID {
		return fmt.Errorf("init PID %d: %w", current.InitPID, ErrConflict)
	}

	return s.write(record)
}

// Clear removes the record. Clearing an absent record is a no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear instance record: %w", err)
	}

	return nil
}

func (s *Store) isStale(record *Record) (bool, error) {
	process := s.proc.Process(record.InitPID)

	alive, err := process.Alive()
	if err != nil {
		return false, fmt.Errorf("check init process: %w", err)
	}

	if !alive {
		return true, nil
	}

	stat, err := process.Stat()
	if err != nil {
		// The init died between the two reads.
		return true, nil
	}

	return stat.Starttime != record.InitStarttime, nil
}

// checkOwner refuses records not written by root or ourselves. The
// record decides what distrod executes with root privileges.
func (s *Store) checkOwner() error {
	info, err := os.Lstat(s.path)
	if err != nil {
		return fmt.Errorf("inspect instance record: %w", err)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("%s: %w", s.path, ErrUntrustedRecord)
	}

	if stat.Uid == 0 && stat.Gid == 0 {
		return nil
	}

	if stat.Uid == uint32(os.Geteuid()) {
		return nil
	}

	return fmt.Errorf("%s: %w", s.path, ErrUntrustedRecord)
}

// write replaces the record atomically so a concurrent Load never
// observes a half written file.
func (s *Store) write(record *Record) error {
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode instance record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write instance record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".run-info-*")
	if err != nil {
		return fmt.Errorf("write instance record: %w", err)
	}

	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write instance record: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync instance record: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write instance record: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write instance record: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write instance record: %w", err)
	}

	return nil
}
