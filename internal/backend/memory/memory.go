// Package memory provides an in-process backend.Backend used throughout the
// test suite and suitable for short-lived or throwaway archives: a map
// guarded by a mutex, with a monotonic counter standing in for real storage
// addresses.
package memory

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hollowpine/vaultarc/internal/backend"
)

// idSize is the width of the serialised form of an ID: a big-endian uint64
// plus a one-byte null flag.
const idSize = 9

// id is a memory.Backend block identifier: a dense, monotonically assigned
// block number. The null ID is the zero value with isNull set.
type id struct {
	val    uint64
	isNull bool
}

func (i id) String() string {
	if i.isNull {
		return "null"
	}
	return fmt.Sprintf("mem:%d", i.val)
}

func (i id) Equal(other backend.ID) bool {
	o, ok := other.(id)
	if !ok {
		return false
	}
	return i.isNull == o.isNull && i.val == o.val
}

func (i id) IsNull() bool {
	return i.isNull
}

func (i id) Bytes() []byte {
	buf := make([]byte, idSize)
	if i.isNull {
		buf[0] = 1
		return buf
	}
	binary.BigEndian.PutUint64(buf[1:], i.val)
	return buf
}

// Backend is an in-memory block store. The zero value is not usable; create
// one with New.
type Backend struct {
	mu        sync.Mutex
	blockSize uint32
	blocks    map[uint64][]byte
	next      uint64
}

// New creates an empty in-memory backend with the given gross block size.
// Block 0 is reserved for the archive header and pre-allocated so TopID is
// readable before the first data block is acquired.
func New(blockSize uint32) *Backend {
	b := &Backend{
		blockSize: blockSize,
		blocks:    make(map[uint64][]byte),
		next:      1,
	}
	b.blocks[0] = make([]byte, blockSize)

	return b
}

func (b *Backend) BlockSize() uint32 {
	return b.blockSize
}

func (b *Backend) IDSize() int {
	return idSize
}

func (b *Backend) NullID() backend.ID {
	return id{isNull: true}
}

func (b *Backend) DecodeID(buf []byte) (backend.ID, error) {
	if len(buf) != idSize {
		return nil, fmt.Errorf("memory: invalid id width %d, want %d", len(buf), idSize)
	}
	if buf[0] != 0 {
		return id{isNull: true}, nil
	}
	return id{val: binary.BigEndian.Uint64(buf[1:])}, nil
}

func (b *Backend) Acquire() (backend.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := b.next
	b.next++
	b.blocks[v] = make([]byte, b.blockSize)

	return id{val: v}, nil
}

func (b *Backend) Release(bid backend.ID) error {
	i, ok := bid.(id)
	if !ok || i.isNull {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocks, i.val)

	return nil
}

func (b *Backend) Read(bid backend.ID, buf []byte) (int, error) {
	i, ok := bid.(id)
	if !ok || i.isNull {
		return 0, fmt.Errorf("memory: invalid read id %v", bid)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	block, exists := b.blocks[i.val]
	if !exists {
		return 0, fmt.Errorf("memory: no such block %v", bid)
	}

	n := copy(buf, block)
	for ; n < len(buf); n++ {
		buf[n] = 0
	}

	return len(buf), nil
}

func (b *Backend) Write(bid backend.ID, buf []byte) (int, error) {
	i, ok := bid.(id)
	if !ok || i.isNull {
		return 0, fmt.Errorf("memory: invalid write id %v", bid)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	block := make([]byte, b.blockSize)
	n := copy(block, buf)
	b.blocks[i.val] = block

	return n, nil
}

// TopID is the well-known header location: block 0, reserved by New before
// any call to Acquire hands out a data block.
func (b *Backend) TopID() backend.ID {
	return id{val: 0}
}
