package kdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/kdf"
)

func TestPBKDF2DeterministicForSameSalt(t *testing.T) {
	k, err := kdf.NewPBKDF2(kdf.SHA1, 1024, 16)
	require.NoError(t, err)

	k1, err := k.DeriveKey([]byte("password"), 16)
	require.NoError(t, err)
	k2, err := k.DeriveKey([]byte("password"), 16)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 16)
}

func TestPBKDF2DifferentPasswordsDiverge(t *testing.T) {
	k, err := kdf.NewPBKDF2(kdf.SHA256, 1024, 16)
	require.NoError(t, err)

	k1, err := k.DeriveKey([]byte("correct horse"), 16)
	require.NoError(t, err)
	k2, err := k.DeriveKey([]byte("incorrect horse"), 16)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestNoneReturnsPasswordPadded(t *testing.T) {
	k := &kdf.KDF{Algorithm: kdf.None}

	out, err := k.DeriveKey([]byte("abc"), 16)
	require.NoError(t, err)
	assert.Len(t, out, 16)
	assert.Equal(t, []byte("abc"), out[:3])
}
