// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpo-head/wsl-distrod/internal/proc"
)

func writeProcStat(t *testing.T, root string, pid int, state byte, starttime uint64) {
	t.Helper()

	dir := filepath.Join(root, fmt.Sprintf("%d", pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	stat := fmt.Sprintf(
		"%d (init) %c 0 0 0 0 -1 0 0 0 0 0 0 0 0 0 20 0 1 0 %d 0 0",
		pid, state, starttime,
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644))
}

func testStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	procRoot := filepath.Join(dir, "proc")
	require.NoError(t, os.MkdirAll(procRoot, 0o755))

	path := filepath.Join(dir, "distrod_run_info.json")

	return newStore(path, proc.In(procRoot)), procRoot
}

func testRecord(pid int, starttime uint64) *Record {
	return &Record{
		RootfsPath:      "/opt/distrod/distros/ubuntu",
		InitPID:         pid,
		InitStarttime:   starttime,
		CreatedAt:       time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		MountMarkerPath: "/opt/distrod/distros/ubuntu/mnt/distrod_root",
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := testStore(t)

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStoreSaveLoad(t *testing.T) {
	store, procRoot := testStore(t)
	writeProcStat(t, procRoot, 42, 'S', 100)

	record := testRecord(42, 100)
	require.NoError(t, store.Save(record))

	info, err := os.Stat(store.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, *record, *loaded)
}

func TestStoreLoadClearsDeadInit(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, store.write(testRecord(42, 100)))

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoFileExists(t, store.path)
}

func TestStoreLoadClearsZombieInit(t *testing.T) {
	store, procRoot := testStore(t)
	writeProcStat(t, procRoot, 42, 'Z', 100)

	require.NoError(t, store.write(testRecord(42, 100)))

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStoreLoadClearsRecycledPID(t *testing.T) {
	store, procRoot := testStore(t)

	// Same PID, different incarnation.
	writeProcStat(t, procRoot, 42, 'S', 999)

	require.NoError(t, store.write(testRecord(42, 100)))

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoFileExists(t, store.path)
}

func TestStoreLoadClearsCorruptRecord(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, os.WriteFile(store.path, []byte("{truncated"), 0o644))

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoFileExists(t, store.path)
}

func TestStoreSaveConflict(t *testing.T) {
	store, procRoot := testStore(t)
	writeProcStat(t, procRoot, 42, 'S', 100)
	writeProcStat(t, procRoot, 43, 'S', 200)

	require.NoError(t, store.Save(testRecord(42, 100)))

	err := store.Save(testRecord(43, 200))
	require.ErrorIs(t, err, ErrConflict)

	// The live record wins.
	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 42, loaded.InitPID)
}

func TestStoreSaveSamePID(t *testing.T) {
	store, procRoot := testStore(t)
	writeProcStat(t, procRoot, 42, 'S', 100)

	require.NoError(t, store.Save(testRecord(42, 100)))

	updated := testRecord(42, 100)
	updated.RootfsPath = "/opt/distrod/distros/debian"
	require.NoError(t, store.Save(updated))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "/opt/distrod/distros/debian", loaded.RootfsPath)
}

func TestStoreSaveReplacesStaleRecord(t *testing.T) {
	store, procRoot := testStore(t)
	writeProcStat(t, procRoot, 43, 'S', 200)

	// PID 42 is dead, so its record must not block the new one.
	require.NoError(t, store.write(testRecord(42, 100)))

	require.NoError(t, store.Save(testRecord(43, 200)))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 43, loaded.InitPID)
}

func TestStoreClearIdempotent(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, store.Clear())

	require.NoError(t, store.write(testRecord(42, 100)))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	assert.NoFileExists(t, store.path)
}
