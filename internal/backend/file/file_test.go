package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/backend/file"
)

func TestAcquireGrowsFile(t *testing.T) {
	dir := t.TempDir()
	b, err := file.Open(filepath.Join(dir, "archive.vlt"), 32)
	require.NoError(t, err)
	defer b.Close()

	id1, err := b.Acquire()
	require.NoError(t, err)
	id2, err := b.Acquire()
	require.NoError(t, err)

	assert.False(t, id1.Equal(id2))
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := file.Open(filepath.Join(dir, "archive.vlt"), 16)
	require.NoError(t, err)
	defer b.Close()

	id, err := b.Acquire()
	require.NoError(t, err)

	_, err = b.Write(id, []byte("payload"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := b.Read(id, buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, "payload", string(buf[:7]))
}

func TestReopenPreservesBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.vlt")

	b, err := file.Open(path, 16)
	require.NoError(t, err)

	id, err := b.Acquire()
	require.NoError(t, err)
	_, err = b.Write(id, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened, err := file.Open(path, 16)
	require.NoError(t, err)
	defer reopened.Close()

	buf := make([]byte, 16)
	_, err = reopened.Read(id, buf)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(buf[:9]))
}

func TestSnapshotIsAtomicCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archive.vlt")
	dst := filepath.Join(dir, "backup.vlt")

	b, err := file.Open(src, 16)
	require.NoError(t, err)
	defer b.Close()

	id, err := b.Acquire()
	require.NoError(t, err)
	_, err = b.Write(id, []byte("snapshotme"))
	require.NoError(t, err)

	require.NoError(t, b.Snapshot(dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "snapshotme")
}
