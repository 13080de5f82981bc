// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package mounts reads mount tables in the /proc/mounts format.
package mounts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const procMountsPath = "/proc/mounts"

// Entry describes one row of a mount table.
type Entry struct {
	Source  string
	Path    string
	FSType  string
	Options string
}

// Current returns the mount table of the calling process.
func Current() ([]Entry, error) {
	file, err := os.Open(procMountsPath)
	if err != nil {
		return nil, fmt.Errorf("open mount table: %w", err)
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", procMountsPath, err)
	}

	return entries, nil
}

// Parse reads a mount table. Fields are whitespace separated with
// special characters encoded as three digit octal escapes, which are
// decoded.
func Parse(reader io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(reader)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: %w", lineNo, ErrMalformedEntry)
		}

		entries = append(entries, Entry{
			Source:  unescape(fields[0]),
			Path:    unescape(fields[1]),
			FSType:  fields[2],
			Options: fields[3],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}

	return entries, nil
}

// Within reports whether path lies in the file tree rooted at root. A
// path equal to root is within it.
func Within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// unescape decodes the octal escape sequences the kernel uses for
// space, tab, newline and backslash in mount table fields.
func unescape(field string) string {
	if !strings.ContainsRune(field, '\\') {
		return field
	}

	var out strings.Builder
	out.Grow(len(field))

	for i := 0; i < len(field); i++ {
		if field[i] == '\\' && i+3 < len(field) && isOctal(field[i+1:i+4]) {
			value := (field[i+1]-'0')<<6 | (field[i+2]-'0')<<3 | (field[i+3] - '0')
			out.WriteByte(value)
			i += 3

			continue
		}

		out.WriteByte(field[i])
	}

	return out.String()
}

func isOctal(digits string) bool {
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '7' {
			return false
		}
	}

	return len(digits) == 3
}
