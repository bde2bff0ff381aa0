package cipher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/cipher"
)

func TestNoneRoundTrip(t *testing.T) {
	ctx, err := cipher.NewContext(cipher.None, nil, nil)
	require.NoError(t, err)

	plaintext := []byte("plain bytes, never touched")
	ct, err := ctx.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, ct)

	pt, err := ctx.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestAES128CTRRoundTrip(t *testing.T) {
	key, iv, err := cipher.AES128CTR.GenerateKey()
	require.NoError(t, err)

	ctx, err := cipher.NewContext(cipher.AES128CTR, key, iv)
	require.NoError(t, err)

	plaintext := make([]byte, 496)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ct, err := ctx.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)
	assert.Equal(t, len(plaintext), len(ct))

	pt, err := ctx.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestAES128GCMRoundTrip(t *testing.T) {
	key, iv, err := cipher.AES128GCM.GenerateKey()
	require.NoError(t, err)

	ctx, err := cipher.NewContext(cipher.AES128GCM, key, iv)
	require.NoError(t, err)

	plaintext := []byte("authenticated payload")
	ct, err := ctx.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Equal(t, len(plaintext)+cipher.AES128GCM.TagSize(), len(ct))

	pt, err := ctx.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestAES128GCMTamperDetected(t *testing.T) {
	key, iv, err := cipher.AES128GCM.GenerateKey()
	require.NoError(t, err)

	ctx, err := cipher.NewContext(cipher.AES128GCM, key, iv)
	require.NoError(t, err)

	ct, err := ctx.Encrypt([]byte("sensitive"))
	require.NoError(t, err)
	ct[0] ^= 0xFF

	_, err = ctx.Decrypt(ct)
	assert.ErrorIs(t, err, cipher.ErrNotTrustworthy)
}

func TestNewContextRejectsBadSizes(t *testing.T) {
	_, err := cipher.NewContext(cipher.AES128GCM, make([]byte, 15), make([]byte, 12))
	assert.ErrorIs(t, err, cipher.ErrInvalidKey)

	_, err = cipher.NewContext(cipher.AES128GCM, make([]byte, 16), make([]byte, 11))
	assert.ErrorIs(t, err, cipher.ErrInvalidIV)
}

func TestNetBlockSize(t *testing.T) {
	assert.Equal(t, uint32(512), cipher.None.NetBlockSize(512))
	assert.Equal(t, uint32(512), cipher.AES128CTR.NetBlockSize(512))
	assert.Equal(t, uint32(496), cipher.AES128GCM.NetBlockSize(512))
}
