package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/backend/memory"
)

func TestAcquireDistinctIDs(t *testing.T) {
	b := memory.New(64)

	first, err := b.Acquire()
	require.NoError(t, err)

	second, err := b.Acquire()
	require.NoError(t, err)

	assert.False(t, first.Equal(second))
	assert.False(t, first.IsNull())
	assert.False(t, first.Equal(b.TopID()))
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := memory.New(16)

	id, err := b.Acquire()
	require.NoError(t, err)

	n, err := b.Write(id, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = b.Read(id, buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, []byte("hello\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"), buf)
}

func TestDecodeIDRoundTrip(t *testing.T) {
	b := memory.New(8)

	id, err := b.Acquire()
	require.NoError(t, err)

	decoded, err := b.DecodeID(id.Bytes())
	require.NoError(t, err)
	assert.True(t, id.Equal(decoded))

	null, err := b.DecodeID(b.NullID().Bytes())
	require.NoError(t, err)
	assert.True(t, null.IsNull())
}

func TestTopIDPreAllocated(t *testing.T) {
	b := memory.New(8)

	buf := make([]byte, 8)
	n, err := b.Read(b.TopID(), buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
