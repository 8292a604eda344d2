package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFileCreatesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "state.json")
	ctx := context.Background()

	require.NoError(t, atomicWriteFile(ctx, target, []byte("v1"), 0640))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, atomicWriteFile(ctx, target, []byte("v2"), 0640))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// no leftover temp file after a successful rename
	_, err = os.Stat(target + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestAtomicWriteFileExportedWrapperMatches(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "state.json")
	require.NoError(t, AtomicWriteFile(context.Background(), target, []byte("hi"), 0640))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestAppendFsyncAppendsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "wal.log")
	ctx := context.Background()

	require.NoError(t, appendFsync(ctx, target, []byte("line1\n")))
	require.NoError(t, appendFsync(ctx, target, []byte("line2\n")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}
