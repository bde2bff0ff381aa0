package blockio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/backend/memory"
	"github.com/hollowpine/vaultarc/internal/blockio"
	"github.com/hollowpine/vaultarc/internal/cipher"
)

func TestWriteReadRoundTripEncrypted(t *testing.T) {
	be := memory.New(64)
	key, iv, err := cipher.AES128GCM.GenerateKey()
	require.NoError(t, err)
	ctx, err := cipher.NewContext(cipher.AES128GCM, key, iv)
	require.NoError(t, err)

	store := blockio.New(be, ctx)

	id, err := store.Acquire()
	require.NoError(t, err)

	plain := []byte("block plaintext")
	require.NoError(t, store.Write(id, plain))

	got, err := store.Read(id)
	require.NoError(t, err)
	assert.Equal(t, plain, got[:len(plain)])
}

func TestWriteRejectsOversizedPlaintext(t *testing.T) {
	be := memory.New(32)
	ctx, err := cipher.NewContext(cipher.None, nil, nil)
	require.NoError(t, err)
	store := blockio.New(be, ctx)

	id, err := store.Acquire()
	require.NoError(t, err)

	err = store.Write(id, make([]byte, 33))
	assert.Error(t, err)
}

func TestNetBlockSizeAccountsForTag(t *testing.T) {
	be := memory.New(64)
	key, iv, err := cipher.AES128GCM.GenerateKey()
	require.NoError(t, err)
	ctx, err := cipher.NewContext(cipher.AES128GCM, key, iv)
	require.NoError(t, err)

	store := blockio.New(be, ctx)
	assert.Equal(t, uint32(48), store.NetBlockSize())
}
