// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package passwd edits the passwd database of a rootfs and looks up
// the credentials commands run with inside the container.
package passwd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Entry is one passwd database entry.
type Entry struct {
	Name   string
	Passwd string
	UID    int
	GID    int
	Gecos  string
	Home   string
	Shell  string
}

// String serializes the entry in passwd(5) format.
func (e *Entry) String() string {
	return fmt.Sprintf("%s:%s:%d:%d:%s:%s:%s",
		e.Name, e.Passwd, e.UID, e.GID, e.Gecos, e.Home, e.Shell)
}

// ParseEntry parses one passwd(5) line.
func ParseEntry(line string) (*Entry, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 7 {
		return nil, fmt.Errorf("%w: expected 7 fields, got %d", ErrMalformedEntry, len(fields))
	}

	uid, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: uid %q", ErrMalformedEntry, fields[2])
	}

	gid, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("%w: gid %q", ErrMalformedEntry, fields[3])
	}

	return &Entry{
		Name:   fields[0],
		Passwd: fields[1],
		UID:    uid,
		GID:    gid,
		Gecos:  fields[4],
		Home:   fields[5],
		Shell:  fields[6],
	}, nil
}

type fileLine struct {
	entry *Entry
	raw   string
}

// File is an open passwd database. Blank lines survive edits
// unchanged.
type File struct {
	path  string
	lines []fileLine
}

// Open reads the passwd database at path.
func Open(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open passwd file: %w", err)
	}

	file := &File{path: path}

	lines := strings.Split(string(content), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			file.lines = append(file.lines, fileLine{raw: line})
			continue
		}

		entry, err := ParseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}

		file.lines = append(file.lines, fileLine{entry: entry})
	}

	return file, nil
}

// ByName returns a copy of the entry of the named user, or nil.
func (f *File) ByName(name string) *Entry {
	for _, line := range f.lines {
		if line.entry != nil && line.entry.Name == name {
			entry := *line.entry
			return &entry
		}
	}

	return nil
}

// ByUID returns a copy of the first entry with the uid, or nil.
func (f *File) ByUID(uid int) *Entry {
	for _, line := range f.lines {
		if line.entry != nil && line.entry.UID == uid {
			entry := *line.entry
			return &entry
		}
	}

	return nil
}

// Update calls the function for every entry and replaces those it
// returns a non-nil entry for. Returning nil keeps the entry as is.
func (f *File) Update(update func(Entry) *Entry) {
	for i, line := range f.lines {
		if line.entry == nil {
			continue
		}

		if updated := update(*line.entry); updated != nil {
			f.lines[i].entry = updated
		}
	}
}

// Save writes the database back to its file.
func (f *File) Save() error {
	var builder strings.Builder

	for _, line := range f.lines {
		if line.entry != nil {
			builder.WriteString(line.entry.String())
		} else {
			builder.WriteString(line.raw)
		}

		builder.WriteString("\n")
	}

	if err := os.WriteFile(f.path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("write passwd file: %w", err)
	}

	return nil
}
