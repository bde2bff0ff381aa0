package archive

import (
	"fmt"
	"io"
)

// Reader reads a file or symlink entry's content in order, one content
// block at a time.
type Reader struct {
	a          *Archive
	startIndex uint64
	size       uint64

	pos uint64 // bytes already delivered to callers
}

// Read fills p with up to len(p) bytes of the entry's content, starting
// where the previous Read left off. It returns 0, nil at end of content --
// callers loop on pos reaching Size rather than on a sentinel error.
//
// If the tree claims a content block the backend has no slot for at all
// (a truncated backend, a header written then the blocks that should
// follow it lost), Read logs a warning and returns 0 rather than an error,
// preserving the archive's premature-end-of-archive tolerance. A block the
// tree does resolve but that then fails to read or decrypt -- a tampered
// block, say -- is a different failure and is never swallowed: Read
// propagates it unchanged.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.size || len(p) == 0 {
		return 0, nil
	}

	netBS := uint64(r.a.NetBlockSize())
	blockIdx := r.pos / netBS
	offset := r.pos % netBS

	id, err := r.a.hdr.Tree.Lookup(int(r.startIndex + blockIdx))
	if err != nil {
		r.a.logger.Warnf("archive: premature end of archive reading block %d: %v", r.startIndex+blockIdx, err)
		return 0, nil
	}

	plain, err := r.a.store.Read(id)
	if err != nil {
		return 0, fmt.Errorf("archive: read content block %d: %w", r.startIndex+blockIdx, err)
	}

	avail := uint64(len(plain)) - offset
	remaining := r.size - r.pos
	n := uint64(len(p))
	if avail < n {
		n = avail
	}
	if remaining < n {
		n = remaining
	}

	copy(p, plain[offset:offset+n])
	r.pos += n

	return int(n), nil
}

// ReadAll reads the entry's entire remaining content into one buffer. If
// Read reaches a premature end of archive before the entry's recorded size,
// ReadAll fails with an error wrapping io.ErrUnexpectedEOF.
func (r *Reader) ReadAll() ([]byte, error) {
	out := make([]byte, 0, r.size-r.pos)
	buf := make([]byte, r.a.NetBlockSize())

	for r.pos < r.size {
		n, err := r.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("archive: read content: %d of %d bytes: %w", r.pos, r.size, io.ErrUnexpectedEOF)
		}
		out = append(out, buf[:n]...)
	}

	return out, nil
}
