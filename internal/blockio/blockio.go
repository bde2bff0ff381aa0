// Package blockio is the buffered block I/O layer sitting between the raw
// backend.Backend and every structured reader/writer above it (tree nodes,
// entry headers, entry content). It is the one place a block's gross bytes
// become plaintext and back, reusing one scratch buffer per Store across
// calls rather than allocating per block.
package blockio

import (
	"context"
	"fmt"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/obs"
)

// Option configures a Store at construction time.
type Option func(*Store)

// WithMetrics records block allocations and encrypt/decrypt byte counts to
// m. Passing a nil Metrics (the default) disables this.
func WithMetrics(m *obs.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithCircuitBreaker guards every backend Read/Write/Acquire call with cb,
// so a backend that starts failing repeatedly (a dying disk, a partitioned
// network store) stops being hammered once cb trips open.
func WithCircuitBreaker(cb *obs.CircuitBreaker) Option {
	return func(s *Store) { s.breaker = cb }
}

// Store reads and writes whole blocks, decrypting on the way in and
// encrypting on the way out. It owns a reusable scratch buffer sized to the
// backend's gross block size so callers never allocate per block.
type Store struct {
	be      backend.Backend
	ctx     *cipher.Context
	scratch []byte
	metrics *obs.Metrics
	breaker *obs.CircuitBreaker
}

// New returns a Store reading/writing through be, encrypting with ctx.
func New(be backend.Backend, ctx *cipher.Context, opts ...Option) *Store {
	s := &Store{
		be:      be,
		ctx:     ctx,
		scratch: make([]byte, be.BlockSize()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NetBlockSize is the usable plaintext capacity of one block once the
// cipher's authentication tag overhead, if any, is subtracted.
func (s *Store) NetBlockSize() uint32 {
	return s.ctx.Algorithm().NetBlockSize(s.be.BlockSize())
}

// Backend returns the underlying block device.
func (s *Store) Backend() backend.Backend {
	return s.be
}

func (s *Store) guarded(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.Execute(context.Background(), fn)
}

// Acquire hands out a fresh block ID from the backend.
func (s *Store) Acquire() (backend.ID, error) {
	var id backend.ID
	err := s.guarded(func() error {
		var err error
		id, err = s.be.Acquire()
		return err
	})
	if err != nil {
		return nil, backend.Wrap("acquire", err)
	}
	s.metrics.BlocksAllocatedInc()
	return id, nil
}

// Read decrypts and returns the plaintext stored at id.
func (s *Store) Read(id backend.ID) ([]byte, error) {
	err := s.guarded(func() error {
		_, err := s.be.Read(id, s.scratch)
		return err
	})
	if err != nil {
		return nil, backend.Wrap("read", err)
	}

	plain, err := s.ctx.Decrypt(s.scratch)
	if err != nil {
		return nil, fmt.Errorf("blockio: decrypt block %s: %w", id, err)
	}
	s.metrics.BytesDecryptedAdd(len(s.scratch))

	return plain, nil
}

// Write encrypts plain and stores it at id. plain must be at most
// NetBlockSize bytes; it is zero-padded to NetBlockSize before encryption,
// so every block holds one full gross-sized ciphertext that Read can
// decrypt (and, under an AE cipher, verify) as a whole.
func (s *Store) Write(id backend.ID, plain []byte) error {
	if uint32(len(plain)) > s.NetBlockSize() {
		return fmt.Errorf("blockio: write of %d bytes exceeds net block size %d", len(plain), s.NetBlockSize())
	}

	padded := make([]byte, s.NetBlockSize())
	copy(padded, plain)

	cipherText, err := s.ctx.Encrypt(padded)
	if err != nil {
		return fmt.Errorf("blockio: encrypt block %s: %w", id, err)
	}
	s.metrics.BytesEncryptedAdd(len(padded))

	err = s.guarded(func() error {
		_, err := s.be.Write(id, cipherText)
		return err
	})
	if err != nil {
		return backend.Wrap("write", err)
	}

	return nil
}
