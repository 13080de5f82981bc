// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package envfile

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// ShellScript accumulates environment variables and PATH members and
// renders a POSIX shell snippet that applies them without clobbering
// values the user has already set.
type ShellScript struct {
	envs  map[string]string
	paths map[string]struct{}
}

// NewShellScript returns an empty script.
func NewShellScript() *ShellScript {
	return &ShellScript{
		envs:  make(map[string]string),
		paths: make(map[string]struct{}),
	}
}

// PutEnv records key to be exported with value if the variable is
// still unset when the script runs.
func (s *ShellScript) PutEnv(key, value string) {
	s.envs[key] = value
}

// PutPath records a member to be prepended to PATH if absent.
func (s *ShellScript) PutPath(path string) {
	s.paths[path] = struct{}{}
}

// Render produces the script text with entries in sorted order, so
// repeated runs generate identical files.
func (s *ShellScript) Render() string {
	var script strings.Builder

	for _, key := range slices.Sorted(maps.Keys(s.envs)) {
		fmt.Fprintf(&script,
			"if [ -z \"${%s:-}\" ]; then export %s=%s; fi\n",
			key, key, singleQuote(s.envs[key]),
		)
	}

	for _, path := range slices.Sorted(maps.Keys(s.paths)) {
		fmt.Fprintf(&script,
			"__CANDIDATE_PATH=%s\n"+
				"__COLON_PATH=\":${PATH}:\"\n"+
				"if [ \"${__COLON_PATH#*:${__CANDIDATE_PATH}:}\" = "+
				"\"${__COLON_PATH}\" ]; then "+
				"export PATH=\"${__CANDIDATE_PATH}:${PATH}\"; fi\n"+
				"unset __CANDIDATE_PATH\n"+
				"unset __COLON_PATH\n",
			singleQuote(path),
		)
	}

	return script.String()
}

// WriteFile writes the rendered script to path. The file is truncated
// when it exists, but its mode is left alone, so callers own the
// permission policy.
func (s *ShellScript) WriteFile(path string, perm os.FileMode) error {
	if err := os.WriteFile(path, []byte(s.Render()), perm); err != nil {
		return fmt.Errorf("write env script: %w", err)
	}

	return nil
}
