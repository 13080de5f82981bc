// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package envfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpo-head/wsl-distrod/internal/envfile"
)

func TestShellScriptRender(t *testing.T) {
	script := envfile.NewShellScript()
	script.PutEnv("var1", "val1")
	script.PutEnv("var2", "val2")
	script.PutEnv("var_space", "value with space")
	script.PutEnv("var2", "val2 again")

	script.PutPath("/path/to/somewhere")
	script.PutPath("/path/with space/somewhere")
	script.PutPath("/path/to/somewhere")

	expected := "if [ -z \"${var1:-}\" ]; then export var1='val1'; fi\n" +
		"if [ -z \"${var2:-}\" ]; then export var2='val2 again'; fi\n" +
		"if [ -z \"${var_space:-}\" ]; then " +
		"export var_space='value with space'; fi\n" +
		"__CANDIDATE_PATH='/path/to/somewhere'\n" +
		"__COLON_PATH=\":${PATH}:\"\n" +
		"if [ \"${__COLON_PATH#*:${__CANDIDATE_PATH}:}\" = " +
		"\"${__COLON_PATH}\" ]; then " +
		"export PATH=\"${__CANDIDATE_PATH}:${PATH}\"; fi\n" +
		"unset __CANDIDATE_PATH\n" +
		"unset __COLON_PATH\n" +
		"__CANDIDATE_PATH='/path/with space/somewhere'\n" +
		"__COLON_PATH=\":${PATH}:\"\n" +
		"if [ \"${__COLON_PATH#*:${__CANDIDATE_PATH}:}\" = " +
		"\"${__COLON_PATH}\" ]; then " +
		"export PATH=\"${__CANDIDATE_PATH}:${PATH}\"; fi\n" +
		"unset __CANDIDATE_PATH\n" +
		"unset __COLON_PATH\n"

	assert.Equal(t, expected, script.Render())
}

func TestShellScriptQuotesValues(t *testing.T) {
	script := envfile.NewShellScript()
	script.PutEnv("quoted", "it's")

	assert.Equal(
		t,
		`if [ -z "${quoted:-}" ]; then export quoted='it'"'"'s'; fi`+"\n",
		script.Render(),
	)
}

func TestShellScriptWriteFile(t *testing.T) {
	script := envfile.NewShellScript()
	script.PutEnv("var1", "val1")

	path := filepath.Join(t.TempDir(), "distrod_wsl_env-uid1000")
	require.NoError(t, script.WriteFile(path, 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, script.Render(), readFile(t, path))
}

func TestShellScriptWriteFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distrod_wsl_env-uid0")
	require.NoError(
		t, os.WriteFile(path, []byte("stale old content, quite long\n"), 0o755),
	)

	script := envfile.NewShellScript()
	script.PutEnv("a", "b")
	require.NoError(t, script.WriteFile(path, 0o644))

	assert.Equal(t, script.Render(), readFile(t, path))
}
