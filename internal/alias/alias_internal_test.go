// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package alias

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeExecBridge(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "distrod-exec")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	return path
}

func TestStorePaths(t *testing.T) {
	t.Parallel()

	store := NewStore("/opt/distrod/alias")

	linkPath, err := store.LinkPath("/bin/bash")
	require.NoError(t, err)
	assert.Equal(t, "/opt/distrod/alias/bin/bash", linkPath)

	_, err = store.LinkPath("bin/bash")
	require.ErrorIs(t, err, ErrSourceNotAbsolute)

	sourcePath, err := store.SourcePath("/opt/distrod/alias/usr/sbin/nologin")
	require.NoError(t, err)
	assert.Equal(t, "/usr/sbin/nologin", sourcePath)

	_, err = store.SourcePath("/bin/bash")
	require.ErrorIs(t, err, ErrNotAlias)

	assert.True(t, store.IsAlias("/opt/distrod/alias/bin/bash"))
	assert.False(t, store.IsAlias("/opt/distrod/alias"))
	assert.False(t, store.IsAlias("/opt/distrod/aliases/bin/bash"))
	assert.False(t, store.IsAlias("/bin/bash"))
}

func TestStoreEnsure(t *testing.T) {
	t.Parallel()

	execPath := fakeExecBridge(t)
	store := NewStore(filepath.Join(t.TempDir(), "alias"))

	linkPath, err := store.Ensure("/bin/bash", execPath)
	require.NoError(t, err)

	linkInfo, err := os.Stat(linkPath)
	require.NoError(t, err)

	execInfo, err := os.Stat(execPath)
	require.NoError(t, err)
	assert.True(t, os.SameFile(execInfo, linkInfo), "alias shares the inode")

	// A second run keeps the existing link.
	again, err := store.Ensure("/bin/bash", execPath)
	require.NoError(t, err)
	assert.Equal(t, linkPath, again)
}

const passwdFixture = `root:x:0:0:root:/root:/bin/bash
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin

alice:x:1000:1000:Alice:/home/alice:/usr/bin/zsh
`

func TestShellHookRoundTrip(t *testing.T) {
	t.Parallel()

	execPath := fakeExecBridge(t)
	aliasDir := filepath.Join(t.TempDir(), "alias")
	store := NewStore(aliasDir)

	passwdPath := filepath.Join(t.TempDir(), "passwd")
	require.NoError(t, os.WriteFile(passwdPath, []byte(passwdFixture), 0o644))

	require.NoError(t, EnableShellHook(store, passwdPath, execPath))

	hooked, err := os.ReadFile(passwdPath)
	require.NoError(t, err)
	assert.Contains(t, string(hooked),
		"root:x:0:0:root:/root:"+filepath.Join(aliasDir, "bin/bash"))
	assert.Contains(t, string(hooked), filepath.Join(aliasDir, "usr/sbin/nologin"))
	assert.Contains(t, string(hooked), filepath.Join(aliasDir, "usr/bin/zsh"))
	assert.FileExists(t, filepath.Join(aliasDir, "bin/bash"))

	// Enabling twice must not stack alias prefixes.
	require.NoError(t, EnableShellHook(store, passwdPath, execPath))

	stillHooked, err := os.ReadFile(passwdPath)
	require.NoError(t, err)
	assert.Equal(t, string(hooked), string(stillHooked))

	require.NoError(t, DisableShellHook(store, passwdPath))

	restored, err := os.ReadFile(passwdPath)
	require.NoError(t, err)
	assert.Equal(t, passwdFixture, string(restored), "blank lines and order survive")
}
