package header_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/backend/memory"
	"github.com/hollowpine/vaultarc/internal/blockio"
	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/header"
	"github.com/hollowpine/vaultarc/internal/kdf"
	"github.com/hollowpine/vaultarc/internal/tree"
)

func TestEncodeDecodeRoundTripNoCipher(t *testing.T) {
	be := memory.New(64)
	ctx, err := cipher.NewContext(cipher.None, nil, nil)
	require.NoError(t, err)
	store := blockio.New(be, ctx)

	h, err := header.New(cipher.None, nil)
	require.NoError(t, err)
	h.Tree = tree.New(store)
	h.Created = 100
	h.Modified = 200
	h.NFiles = 3

	buf, err := h.Encode(nil)
	require.NoError(t, err)

	got, err := header.Decode(be, buf, nil)
	require.NoError(t, err)
	assert.Equal(t, h.Created, got.Created)
	assert.Equal(t, h.Modified, got.Modified)
	assert.Equal(t, h.NFiles, got.NFiles)
	assert.Equal(t, h.DataKey, got.DataKey)
	assert.Equal(t, h.DataIV, got.DataIV)
}

func TestEncodeDecodeRoundTripWithPassword(t *testing.T) {
	be := memory.New(64)
	ctx, err := cipher.NewContext(cipher.AES128GCM, make([]byte, 16), make([]byte, 12))
	require.NoError(t, err)
	store := blockio.New(be, ctx)

	kd, err := kdf.NewPBKDF2(kdf.SHA256, 1000, 16)
	require.NoError(t, err)

	h, err := header.New(cipher.AES128GCM, kd)
	require.NoError(t, err)
	h.Tree = tree.New(store)

	password := []byte("hunter2")
	buf, err := h.Encode(password)
	require.NoError(t, err)

	got, err := header.Decode(be, buf, password)
	require.NoError(t, err)
	assert.Equal(t, h.DataKey, got.DataKey)
	assert.Equal(t, h.DataIV, got.DataIV)
}

func TestDecodeWrongPasswordFails(t *testing.T) {
	be := memory.New(64)
	ctx, err := cipher.NewContext(cipher.AES128GCM, make([]byte, 16), make([]byte, 12))
	require.NoError(t, err)
	store := blockio.New(be, ctx)

	kd, err := kdf.NewPBKDF2(kdf.SHA1, 1000, 16)
	require.NoError(t, err)

	h, err := header.New(cipher.AES128GCM, kd)
	require.NoError(t, err)
	h.Tree = tree.New(store)

	buf, err := h.Encode([]byte("correct"))
	require.NoError(t, err)

	_, err = header.Decode(be, buf, []byte("wrong"))
	assert.ErrorIs(t, err, header.ErrWrongPassword)
}

func TestDecodeRejectsInvalidMagic(t *testing.T) {
	be := memory.New(64)
	_, err := header.Decode(be, make([]byte, 64), nil)
	assert.ErrorIs(t, err, header.ErrInvalidMagic)
}
