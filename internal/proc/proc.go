// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package proc reads process information from the proc filesystem.
package proc

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// FS addresses a mounted proc filesystem.
type FS struct {
	root string
}

// Default is the proc filesystem mounted at /proc.
var Default = FS{root: "/proc"}

// In returns the proc filesystem mounted at root.
func In(root string) FS {
	return FS{root: root}
}

// Process returns a handle for the process with the given PID. The
// process does not need to exist.
func (f FS) Process(pid int) *Process {
	return &Process{
		fs:  f,
		pid: pid,
		dir: filepath.Join(f.root, strconv.Itoa(pid)),
	}
}

// Self returns the handle for the calling process.
func (f FS) Self() *Process {
	return f.Process(os.Getpid())
}

// Process is a handle for a single process directory.
type Process struct {
	fs  FS
	pid int
	dir string
}

// PID returns the process ID the handle addresses.
func (p *Process) PID() int {
	return p.pid
}

// Stat is the subset of process stat fields the distrod tools need.
type Stat struct {
	Comm      string
	State     byte
	PPID      int
	Starttime uint64
}

// Stat reads and parses the stat file of the process.
func (p *Process) Stat() (*Stat, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, "stat"))
	if err != nil {
		return nil, fmt.Errorf("read stat of pid %d: %w", p.pid, err)
	}

	stat, err := parseStat(string(data))
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", p.pid, err)
	}

	return stat, nil
}

// Alive reports whether the process exists and has not terminated. A
// missing process is not an error.
func (p *Process) Alive() (bool, error) {
	stat, err := p.Stat()
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ESRCH) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return stat.State != 'Z' && stat.State != 'X', nil
}

// Parent returns a handle for the parent process, or nil if the
// process has none.
func (p *Process) Parent() (*Process, error) {
	stat, err := p.Stat()
	if err != nil {
		return nil, err
	}

	if stat.PPID == 0 {
		return nil, nil
	}

	return p.fs.Process(stat.PPID), nil
}

// Environ returns the initial environment of the process.
func (p *Process) Environ() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, "environ"))
	if err != nil {
		return nil, fmt.Errorf("read environ of pid %d: %w", p.pid, err)
	}

	env := make(map[string]string)

	for _, entry := range bytes.Split(data, []byte{0}) {
		if len(entry) == 0 {
			continue
		}

		key, value, found := bytes.Cut(entry, []byte{'='})
		if !found {
			continue
		}

		env[string(key)] = string(value)
	}

	return env, nil
}

// NamespacePath returns the path of the namespace file of the given
// kind, such as mnt, pid or uts.
func (p *Process) NamespacePath(kind string) string {
	return filepath.Join(p.dir, "ns", kind)
}

// RootPath translates path into the file tree visible below the root
// directory of the process.
func (p *Process) RootPath(path string) string {
	return filepath.Join(p.dir, "root", path)
}

// starttimeIndex is the position of the starttime value within the
// stat fields following the comm field.
const starttimeIndex = 19

// parseStat parses the content of a stat file. The comm field may
// contain spaces and parentheses, so the remaining fields start after
// the last closing parenthesis.
func parseStat(content string) (*Stat, error) {
	open := strings.IndexByte(content, '(')
	closing := strings.LastIndexByte(content, ')')

	if open < 0 || closing < open {
		return nil, ErrMalformedStat
	}

	rest := strings.Fields(content[closing+1:])
	if len(rest) <= starttimeIndex {
		return nil, ErrMalformedStat
	}

	ppid, err := strconv.Atoi(rest[1])
	if err != nil {
		return nil, fmt.Errorf("%w: ppid: %s", ErrMalformedStat, rest[1])
	}

	starttime, err := strconv.ParseUint(rest[starttimeIndex], 10, 64)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: starttime: %s", ErrMalformedStat, rest[starttimeIndex],
		)
	}

	return &Stat{
		Comm:      content[open+1 : closing],
		State:     rest[0][0],
		PPID:      ppid,
		Starttime: starttime,
	}, nil
}
