// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package envfile

import "strings"

// PathVariable understands the colon separated PATH syntax, including
// a quote pair surrounding the whole value.
type PathVariable struct {
	parsed []string
	added  []string
	seen   map[string]struct{}
	quote  byte
}

// ParsePathVariable splits value into its path members. A quote
// character opening the first member and closing the last one is
// treated as surrounding the whole value.
func ParsePathVariable(value string) *PathVariable {
	parts := strings.Split(value, ":")

	variable := &PathVariable{
		seen: make(map[string]struct{}),
	}

	first, last := parts[0], parts[len(parts)-1]

	for _, candidate := range []string{`"`, `'`} {
		surrounds := strings.HasPrefix(first, candidate) &&
			!strings.HasSuffix(first, candidate) &&
			!strings.HasPrefix(last, candidate) &&
			strings.HasSuffix(last, candidate)
		if !surrounds {
			continue
		}

		variable.quote = candidate[0]
		parts[0] = first[1:]
		parts[len(parts)-1] = last[:len(last)-1]

		break
	}

	variable.parsed = parts
	for _, part := range parts {
		variable.seen[part] = struct{}{}
	}

	return variable
}

// Put prepends path unless it is already a member.
func (v *PathVariable) Put(path string) {
	if _, ok := v.seen[path]; ok {
		return
	}

	v.added = append(v.added, path)
	v.seen[path] = struct{}{}
}

// Serialize renders the members back into the parsed form, restoring
// a surrounding quote pair if one was found.
func (v *PathVariable) Serialize() string {
	joined := strings.Join(v.Paths(), ":")
	if v.quote == 0 {
		return joined
	}

	return string(v.quote) + joined + string(v.quote)
}

// Paths returns all members, the most recently added first.
func (v *PathVariable) Paths() []string {
	paths := make([]string, 0, len(v.added)+len(v.parsed))

	for i := len(v.added) - 1; i >= 0; i-- {
		paths = append(paths, v.added[i])
	}

	return append(paths, v.parsed...)
}
