// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpo-head/wsl-distrod/internal/config"
	"github.com/nullpo-head/wsl-distrod/internal/container"
	"github.com/nullpo-head/wsl-distrod/internal/interop"
	"github.com/nullpo-head/wsl-distrod/internal/passwd"
	"github.com/nullpo-head/wsl-distrod/internal/state"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "no error",
			expected: 0,
		},
		{
			name:     "generic error",
			err:      errors.New("something else"),
			expected: exitFailure,
		},
		{
			name:     "nested invocation",
			err:      container.ErrNested,
			expected: exitNested,
		},
		{
			name:     "wrapped nested invocation",
			err:      fmt.Errorf("enable: %w", container.ErrNested),
			expected: exitNested,
		},
		{
			name:     "init did not start",
			err:      fmt.Errorf("launch: %w", container.ErrInitDidNotStart),
			expected: exitInitDidNotStart,
		},
		{
			name:     "not running",
			err:      container.ErrNotRunning,
			expected: exitNotRunning,
		},
		{
			name:     "record conflict",
			err:      fmt.Errorf("save record: %w", state.ErrConflict),
			expected: exitConflict,
		},
		{
			name:     "untrusted record",
			err:      state.ErrUntrustedRecord,
			expected: exitPermission,
		},
		{
			name:     "untrusted bridge script",
			err:      interop.ErrUntrustedScript,
			expected: exitPermission,
		},
		{
			name:     "untrusted config",
			err:      config.ErrNotOwnedByRoot,
			expected: exitPermission,
		},
		{
			name:     "not root",
			err:      ErrRootRequired,
			expected: exitPermission,
		},
		{
			name:     "file permission",
			err:      fmt.Errorf("open record: %w", fs.ErrPermission),
			expected: exitPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCodeFor(tt.err))
		})
	}
}

func TestExitStatusError(t *testing.T) {
	err := error(exitStatusError(42))
	assert.Equal(t, "command exited with status 42", err.Error())

	var status exitStatusError

	require.ErrorAs(t, fmt.Errorf("enter: %w", err), &status)
	assert.Equal(t, 42, int(status))
}

func TestRootCommand(t *testing.T) {
	root := rootCmd()

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}

	assert.ElementsMatch(t,
		[]string{"create", "enable", "disable", "start", "stop", "exec"},
		names,
	)

	level := root.PersistentFlags().ShorthandLookup("l")
	require.NotNil(t, level)
	assert.Equal(t, "log-level", level.Name)
}

func TestStopSigkillShorthand(t *testing.T) {
	flag := stopCmd().Flags().ShorthandLookup("9")

	require.NotNil(t, flag)
	assert.Equal(t, "sigkill", flag.Name)
}

func TestExecRequiresCommand(t *testing.T) {
	cmd := execCmd()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"echo", "hi"}))
}

func loginRootfs(t *testing.T) string {
	t.Helper()

	rootfsPath := t.TempDir()

	passwdFile := filepath.Join(rootfsPath, "etc/passwd")
	require.NoError(t, os.MkdirAll(filepath.Dir(passwdFile), 0o755))

	content := "root:x:0:0:root:/root:/bin/bash\n" +
		"alice:x:1000:1000:Alice:/home/alice:" +
		filepath.Join(config.AliasDir, "usr/bin/fish") + "\n" +
		"shy:x:1001:1001::/home/shy:\n"
	require.NoError(t, os.WriteFile(passwdFile, []byte(content), 0o644))

	return rootfsPath
}

func TestLoginCommand(t *testing.T) {
	rootfsPath := loginRootfs(t)

	tests := []struct {
		name          string
		uid           int
		expectedPath  string
		expectedArgv0 string
		expectedDir   string
	}{
		{
			name:          "root keeps its shell",
			uid:           0,
			expectedPath:  "/bin/bash",
			expectedArgv0: "-bash",
			expectedDir:   "/root",
		},
		{
			name:          "aliased shell is followed to the source",
			uid:           1000,
			expectedPath:  "/usr/bin/fish",
			expectedArgv0: "-fish",
			expectedDir:   "/home/alice",
		},
		{
			name:          "empty shell falls back to sh",
			uid:           1001,
			expectedPath:  "/bin/sh",
			expectedArgv0: "-sh",
			expectedDir:   "/home/shy",
		},
		{
			name:          "unknown user falls back entirely",
			uid:           4242,
			expectedPath:  "/bin/sh",
			expectedArgv0: "-sh",
			expectedDir:   "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := passwd.NewCredential(tt.uid, tt.uid, nil)

			command, err := loginCommand(rootfsPath, cred)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedPath, command.Path)
			assert.Equal(t, []string{tt.expectedArgv0}, command.Args)
			assert.Equal(t, tt.expectedDir, command.Dir)
			assert.Same(t, cred, command.Cred)
		})
	}
}

func TestLoginCommandMissingPasswd(t *testing.T) {
	_, err := loginCommand(t.TempDir(), passwd.NewCredential(0, 0, nil))

	assert.Error(t, err)
}
