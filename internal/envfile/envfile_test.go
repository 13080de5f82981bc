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

func openTempEnvFile(t *testing.T, content string) (*envfile.File, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "environment")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	file, err := envfile.Open(path)
	require.NoError(t, err)

	return file, path
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func TestFileRoundTrip(t *testing.T) {
	content := "# keep this comment\n" +
		" export  PATH=/usr/bin:/bin  # with comment\n" +
		"\n" +
		"LANG=C.UTF-8\n"

	file, path := openTempEnvFile(t, content)
	require.NoError(t, file.Write())

	assert.Equal(t, content, readFile(t, path))
}

func TestFilePutCreatesMissingFile(t *testing.T) {
	file, path := openTempEnvFile(t, "")

	require.NoError(t, file.Put("WSL_INTEROP", "/run/WSL/8_interop"))
	require.NoError(t, file.Put("WSLENV", "WT_SESSION::WSL_INTEROP"))
	require.NoError(t, file.Write())

	expected := "WSL_INTEROP='/run/WSL/8_interop'\n" +
		"WSLENV='WT_SESSION::WSL_INTEROP'\n"
	assert.Equal(t, expected, readFile(t, path))
}

func TestFilePutUpdatesLastOccurrence(t *testing.T) {
	file, path := openTempEnvFile(t, "A=1\n# keep\nA=2\n")

	require.NoError(t, file.Put("A", "3"))
	require.NoError(t, file.Write())

	assert.Equal(t, "A=1\n# keep\nA='3'\n", readFile(t, path))
}

func TestFilePutRejectsUnsafeValues(t *testing.T) {
	file, _ := openTempEnvFile(t, "")

	err := file.Put("A", "two\nlines")
	require.ErrorIs(t, err, envfile.ErrUnsafeValue)

	err = file.Put("A", `back\slash`)
	require.ErrorIs(t, err, envfile.ErrUnsafeValue)
}

func TestFileGetReturnsRawValue(t *testing.T) {
	file, _ := openTempEnvFile(t, "GREETING='hello world'\n")

	value, ok := file.Get("GREETING")
	require.True(t, ok)
	assert.Equal(t, "'hello world'", value)

	_, ok = file.Get("MISSING")
	assert.False(t, ok)
}

func TestFilePutPath(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		path     string
		expected string
	}{
		{
			name:    "no path falls back to the default",
			content: "",
			path:    "/opt/distrod/bin",
			expected: "PATH=/opt/distrod/bin:" + envfile.DefaultPath +
				"\n",
		},
		{
			name:     "prepends to an existing path",
			content:  "PATH=/usr/bin:/bin\n",
			path:     "/opt/distrod/bin",
			expected: "PATH=/opt/distrod/bin:/usr/bin:/bin\n",
		},
		{
			name:     "existing member is not duplicated",
			content:  "PATH=/usr/bin:/bin\n",
			path:     "/usr/bin",
			expected: "PATH=/usr/bin:/bin\n",
		},
		{
			name:     "surrounding quotes are kept",
			content:  "PATH=\"/usr/bin:/bin\"\n",
			path:     "/opt/distrod/bin",
			expected: "PATH=\"/opt/distrod/bin:/usr/bin:/bin\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, path := openTempEnvFile(t, tt.content)

			file.PutPath(tt.path)
			require.NoError(t, file.Write())

			assert.Equal(t, tt.expected, readFile(t, path))
		})
	}
}

func TestFilePutPathIsStableAcrossReopens(t *testing.T) {
	file, path := openTempEnvFile(t, "PATH=/usr/bin:/bin\n")

	file.PutPath("/opt/distrod/bin")
	require.NoError(t, file.Write())

	reopened, err := envfile.Open(path)
	require.NoError(t, err)
	reopened.PutPath("/opt/distrod/bin")
	require.NoError(t, reopened.Write())

	assert.Equal(
		t, "PATH=/opt/distrod/bin:/usr/bin:/bin\n", readFile(t, path),
	)
}
