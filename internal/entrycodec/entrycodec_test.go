package entrycodec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowpine/vaultarc/internal/backend/memory"
	"github.com/hollowpine/vaultarc/internal/entrycodec"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := entrycodec.Header{
		Name:     "report.txt",
		Size:     128,
		Mode:     entrycodec.Mode{Type: entrycodec.TypeFile, Permissions: 0o644},
		Created:  1000,
		Modified: 2000,
		Accessed: 3000,
	}

	buf, err := entrycodec.Encode(h, 496)
	require.NoError(t, err)

	be := memory.New(512)
	id, err := be.Acquire()
	require.NoError(t, err)

	got, err := entrycodec.Decode(id, buf)
	require.NoError(t, err)
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("decoded header differs from original (-want +got):\n%s", diff)
	}
}

func TestEncodeRejectsOversizeName(t *testing.T) {
	h := entrycodec.Header{
		Name: string(make([]byte, 600)),
		Mode: entrycodec.Mode{Type: entrycodec.TypeFile},
	}

	_, err := entrycodec.Encode(h, 496)
	assert.Error(t, err)
}

func TestDecodeInvalidTypeTag(t *testing.T) {
	be := memory.New(512)
	id, err := be.Acquire()
	require.NoError(t, err)

	h := entrycodec.Header{Name: "x", Mode: entrycodec.Mode{Type: entrycodec.TypeFile}}
	buf, err := entrycodec.Encode(h, 496)
	require.NoError(t, err)

	// Corrupt the mode type tag (immediately after the 4-byte name length
	// and the 1-byte name and the 8-byte size).
	offset := 4 + 1 + 8
	buf[offset] = 0xFF

	_, err = entrycodec.Decode(id, buf)
	var typeErr *entrycodec.InvalidTypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestContentBlocks(t *testing.T) {
	assert.Equal(t, uint64(0), entrycodec.ContentBlocks(0, 16))
	assert.Equal(t, uint64(1), entrycodec.ContentBlocks(16, 16))
	assert.Equal(t, uint64(3), entrycodec.ContentBlocks(40, 16))
	assert.Equal(t, uint64(1), entrycodec.ContentBlocks(1, 16))
}
