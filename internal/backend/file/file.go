// Package file provides a single-file backend.Backend: a growable flat
// file addressed by fixed-size block offsets, opened with the usual
// open/stat/truncate sequence for a lazily-grown container file, minus any
// memory mapping -- the backend contract is a synchronous read/write call
// per block, not a mapped view.
package file

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/hollowpine/vaultarc/internal/backend"
)

const idSize = 9

type id struct {
	offset uint64
	isNull bool
}

func (i id) String() string {
	if i.isNull {
		return "null"
	}
	return fmt.Sprintf("file:%d", i.offset)
}

func (i id) Equal(other backend.ID) bool {
	o, ok := other.(id)
	if !ok {
		return false
	}
	return i.isNull == o.isNull && i.offset == o.offset
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
	binary.BigEndian.PutUint64(buf[1:], i.offset)
	return buf
}

// Backend is a single growable file, sliced into fixed-size blocks. Block 0
// (offset 0) is reserved for the archive header, matching the backend/memory
// convention.
type Backend struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	blockSize uint32
	nblocks   uint64
}

// Open opens (creating if necessary) a file-backed archive container at
// path with the given gross block size.
func Open(path string, blockSize uint32) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file: create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file: stat %s: %w", path, err)
	}

	nblocks := uint64(stat.Size()) / uint64(blockSize)
	if nblocks == 0 {
		if err := f.Truncate(int64(blockSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("file: truncate %s: %w", path, err)
		}
		nblocks = 1
	}

	return &Backend{
		file:      f,
		path:      path,
		blockSize: blockSize,
		nblocks:   nblocks,
	}, nil
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
		return nil, fmt.Errorf("file: invalid id width %d, want %d", len(buf), idSize)
	}
	if buf[0] != 0 {
		return id{isNull: true}, nil
	}
	return id{offset: binary.BigEndian.Uint64(buf[1:])}, nil
}

func (b *Backend) Acquire() (backend.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset := b.nblocks
	newSize := int64((offset + 1) * uint64(b.blockSize))
	if err := b.file.Truncate(newSize); err != nil {
		return nil, fmt.Errorf("file: grow to %d bytes: %w", newSize, err)
	}
	b.nblocks++

	return id{offset: offset}, nil
}

func (b *Backend) Release(backend.ID) error {
	return nil
}

func (b *Backend) Read(bid backend.ID, buf []byte) (int, error) {
	i, ok := bid.(id)
	if !ok || i.isNull {
		return 0, fmt.Errorf("file: invalid read id %v", bid)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.file.ReadAt(buf, int64(i.offset)*int64(b.blockSize))
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("file: read at %d: %w", i.offset, err)
	}
	for ; n < len(buf); n++ {
		buf[n] = 0
	}

	return len(buf), nil
}

func (b *Backend) Write(bid backend.ID, buf []byte) (int, error) {
	i, ok := bid.(id)
	if !ok || i.isNull {
		return 0, fmt.Errorf("file: invalid write id %v", bid)
	}
	if uint32(len(buf)) > b.blockSize {
		return 0, fmt.Errorf("file: write of %d bytes exceeds block size %d", len(buf), b.blockSize)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	padded := buf
	if uint32(len(buf)) < b.blockSize {
		padded = make([]byte, b.blockSize)
		copy(padded, buf)
	}

	n, err := b.file.WriteAt(padded, int64(i.offset)*int64(b.blockSize))
	if err != nil {
		return n, fmt.Errorf("file: write at %d: %w", i.offset, err)
	}

	return len(buf), nil
}

func (b *Backend) TopID() backend.ID {
	return id{offset: 0}
}

// Close flushes and closes the underlying file.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("file: sync: %w", err)
	}
	return b.file.Close()
}

// Snapshot writes a point-in-time copy of the container to destPath. The
// copy is produced via an atomic rename so a concurrent reader of destPath
// never observes a partially written file -- the realistic backup path for
// a single-writer, append-only container.
func (b *Backend) Snapshot(destPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("file: sync before snapshot: %w", err)
	}

	r, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("file: reopen for snapshot: %w", err)
	}
	defer r.Close()

	if err := atomic.WriteFile(destPath, r); err != nil {
		return fmt.Errorf("file: snapshot to %s: %w", destPath, err)
	}

	return nil
}
