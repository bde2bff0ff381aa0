package archive_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/archive"
	"github.com/hollowpine/vaultarc/internal/backend/memory"
	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/kdf"
)

func TestEmptyArchiveRoundTrip(t *testing.T) {
	be := memory.New(512)

	a, err := archive.Create(be,
		archive.WithCipher(cipher.AES128GCM),
		archive.WithPBKDF2(kdf.SHA1, 65536, 16),
		archive.WithPassword([]byte("123")),
	)
	require.NoError(t, err)

	info := a.Info()
	assert.Equal(t, uint64(0), info.NBlocks)
	assert.Equal(t, uint64(0), info.NFiles)

	_, err = a.First()
	assert.ErrorIs(t, err, archive.ErrNotFound)

	reopened, err := archive.Open(be, archive.WithPassword([]byte("123")))
	require.NoError(t, err)

	info = reopened.Info()
	assert.Equal(t, uint64(0), info.NBlocks)
	assert.Equal(t, uint64(0), info.NFiles)
}

func TestThreeEntryScan(t *testing.T) {
	be := memory.New(512)

	a, err := archive.Create(be, archive.WithCipher(cipher.AES128GCM), archive.WithPassword(nil))
	require.NoError(t, err)

	_, err = a.AppendFile("f1")
	require.NoError(t, err)

	_, err = a.AppendDirectory("f2")
	require.NoError(t, err)

	_, err = a.AppendSymlink("f3", "target")
	require.NoError(t, err)

	e, err := a.First()
	require.NoError(t, err)
	assert.True(t, e.IsFile())
	assert.Equal(t, "f1", e.Name())
	assert.Equal(t, uint64(0), e.Size())

	e, err = e.Next()
	require.NoError(t, err)
	assert.True(t, e.IsDir())
	assert.Equal(t, "f2", e.Name())

	e, err = e.Next()
	require.NoError(t, err)
	assert.True(t, e.IsSymlink())
	assert.Equal(t, "f3", e.Name())
	target, err := e.AsSymlink()
	require.NoError(t, err)
	assert.Equal(t, "target", target)

	_, err = e.Next()
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestPartialWriteVisibleAfterReopen(t *testing.T) {
	be := memory.New(512)

	a, err := archive.Create(be, archive.WithCipher(cipher.None))
	require.NoError(t, err)

	w, err := a.AppendFile("a")
	require.NoError(t, err)
	require.NoError(t, w.WriteAll([]byte("hello")))

	reopened, err := archive.Open(be)
	require.NoError(t, err)

	e, err := reopened.First()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), e.Size())

	got, err := e.AsFile().ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestCrossBlockWrite(t *testing.T) {
	// The archive header of a None-cipher archive on the memory backend
	// encodes to 227 bytes, so 256 is a small block size Create accepts;
	// the payload below then spans three content blocks.
	be := memory.New(256)

	a, err := archive.Create(be, archive.WithCipher(cipher.None))
	require.NoError(t, err)

	netBS := int(a.NetBlockSize())
	require.Greater(t, netBS, 0)

	w, err := a.AppendFile("big")
	require.NoError(t, err)

	payload := make([]byte, 0, netBS*3-8)
	for i := 0; i < cap(payload); i++ {
		payload = append(payload, byte(i))
	}
	require.NoError(t, w.WriteAll(payload))

	e, err := a.First()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), e.Size())

	got, err := e.AsFile().ReadAll()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWrongPasswordFails(t *testing.T) {
	be := memory.New(512)

	_, err := archive.Create(be,
		archive.WithCipher(cipher.AES128GCM),
		archive.WithPBKDF2(kdf.SHA256, 1000, 16),
		archive.WithPassword([]byte("abc")),
	)
	require.NoError(t, err)

	_, err = archive.Open(be, archive.WithPassword([]byte("xxx")))
	assert.True(t, errors.Is(err, archive.ErrWrongPassword))
}

func TestLookupFindsEntryByName(t *testing.T) {
	be := memory.New(512)

	a, err := archive.Create(be, archive.WithCipher(cipher.None))
	require.NoError(t, err)

	_, err = a.AppendFile("one")
	require.NoError(t, err)
	_, err = a.AppendFile("two")
	require.NoError(t, err)

	e, err := a.Lookup("two")
	require.NoError(t, err)
	assert.Equal(t, "two", e.Name())

	_, err = a.Lookup("missing")
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestInvalidBlockSizeRejected(t *testing.T) {
	be := memory.New(8)

	_, err := archive.Create(be, archive.WithCipher(cipher.None))
	assert.ErrorIs(t, err, archive.ErrInvalidBlockSize)
}
