package archive

import (
	"fmt"
	"time"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/entrycodec"
)

// Writer appends content to a file or symlink entry just created by
// Archive.AppendFile or Archive.AppendSymlink. Content blocks are acquired
// in the same forward order as every other block in the archive, so a
// Writer must run to completion before any other entry is appended.
type Writer struct {
	a           *Archive
	headerIndex uint64
	hdr         entrycodec.Header

	tailID  backend.ID
	tailBuf []byte // plaintext content of the block tailID currently holds
}

// Write appends p to the entry's content, reusing the current tail block
// while it has room and acquiring new blocks as needed. It always writes
// all of p or returns an error.
func (w *Writer) Write(p []byte) (int, error) {
	netBS := int(w.a.NetBlockSize())
	written := 0

	for len(p) > 0 {
		pos := int(w.hdr.Size) % netBS

		if pos == 0 {
			id, err := w.a.hdr.Tree.Acquire()
			if err != nil {
				return written, wrapCorruption(err)
			}
			w.tailID = id
			w.tailBuf = w.tailBuf[:0]
		} else if w.tailBuf == nil {
			buf, err := w.a.store.Read(w.tailID)
			if err != nil {
				return written, err
			}
			w.tailBuf = append(w.tailBuf[:0], buf[:pos]...)
		}

		room := netBS - len(w.tailBuf)
		n := min(room, len(p))
		w.tailBuf = append(w.tailBuf, p[:n]...)

		if err := w.a.store.Write(w.tailID, w.tailBuf); err != nil {
			return written, err
		}

		p = p[n:]
		written += n
		w.hdr.Size += uint64(n)

		if len(w.tailBuf) == netBS {
			w.tailBuf = nil
		}
	}

	if written > 0 {
		if err := w.commit(); err != nil {
			return written, err
		}
	}

	return written, nil
}

// WriteAll is a convenience wrapper around Write for callers that don't
// need the partial-write count.
func (w *Writer) WriteAll(p []byte) error {
	_, err := w.Write(p)
	return err
}

// commit re-encodes the entry's header with its updated size and flushes
// both the entry header block and the archive header, the archive's sole
// durability boundary.
func (w *Writer) commit() error {
	now := time.Now().Unix()
	w.hdr.Modified = now

	id, err := w.a.hdr.Tree.Lookup(int(w.headerIndex))
	if err != nil {
		return wrapCorruption(fmt.Errorf("archive: commit entry %q: %w", w.hdr.Name, err))
	}

	buf, err := entrycodec.Encode(w.hdr, w.a.NetBlockSize())
	if err != nil {
		return err
	}
	if err := w.a.store.Write(id, buf); err != nil {
		return err
	}

	w.a.hdr.Modified = now
	if err := w.a.flushHeader(); err != nil {
		return err
	}

	return nil
}
