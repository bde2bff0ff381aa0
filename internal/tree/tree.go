// Package tree implements the archive's block-indirection tree: the
// ext2/3/4-inode-style mapping from a dense content-block index to a
// backend.ID, addressed through 12 direct slots and single/double/triple
// indirect nodes. The cache in cache.go follows an MRU bookkeeping style
// generalised from an LRU-of-many to a one-slot-per-depth cache, since each
// depth is visited at most once per lookup.
package tree

import (
	"errors"
	"fmt"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/blockio"
	"github.com/hollowpine/vaultarc/internal/obs"
)

// NumDirect is the number of direct block slots carried inline in the tree.
const NumDirect = 12

// ErrFull is returned by Acquire once the tree's three-level indirection
// scheme has exhausted its addressable range for the current block size.
var ErrFull = errors.New("tree: archive is full")

// Tree maps a dense block index to a backend.ID via 12 direct slots plus
// single, double, and triple indirect nodes, mirroring a classic inode
// address map.
type Tree struct {
	store *blockio.Store
	be    backend.Backend
	k     int // ids per indirect node block

	direct     [NumDirect]backend.ID
	indirect   backend.ID
	dIndirect  backend.ID
	tIndirect  backend.ID
	nblocksVal uint64

	cache   [3]slot
	metrics *obs.Metrics
}

// SetMetrics attaches m so subsequent lookups record cache hit/miss counts.
func (t *Tree) SetMetrics(m *obs.Metrics) {
	t.metrics = m
}

// New returns an empty tree backed by store.
func New(store *blockio.Store) *Tree {
	be := store.Backend()
	t := &Tree{
		store:     store,
		be:        be,
		k:         int(store.NetBlockSize()) / be.IDSize(),
		indirect:  be.NullID(),
		dIndirect: be.NullID(),
		tIndirect: be.NullID(),
	}
	for i := range t.direct {
		t.direct[i] = be.NullID()
	}
	return t
}

// NBlocks is the number of content blocks currently addressed by the tree.
func (t *Tree) NBlocks() uint64 {
	return t.nblocksVal
}

func (t *Tree) capacity() uint64 {
	k := uint64(t.k)
	return NumDirect + k + k*k + k*k*k
}

// Acquire allocates the next block in index order and returns its ID.
func (t *Tree) Acquire() (backend.ID, error) {
	if t.nblocksVal >= t.capacity() {
		return nil, ErrFull
	}
	return t.lookupOrAcquire(int(t.nblocksVal), true)
}

// Lookup returns the ID stored at content-block index idx, or the backend's
// null ID if idx is within range but was never written (a hole).
func (t *Tree) Lookup(idx int) (backend.ID, error) {
	if idx < 0 || uint64(idx) >= t.nblocksVal {
		return nil, fmt.Errorf("tree: index %d out of range (nblocks=%d)", idx, t.nblocksVal)
	}
	return t.lookupOrAcquire(idx, false)
}

func (t *Tree) lookupOrAcquire(idx int, acquire bool) (backend.ID, error) {
	k := t.k

	switch {
	case idx < NumDirect:
		return t.lookupDirect(idx, acquire)
	case idx < NumDirect+k:
		return t.lookupIndirect(idx-NumDirect, acquire)
	case idx < NumDirect+k+k*k:
		return t.lookupDIndirect(idx-NumDirect-k, acquire)
	default:
		return t.lookupTIndirect(idx-NumDirect-k-k*k, acquire)
	}
}

func (t *Tree) lookupDirect(idx int, acquire bool) (backend.ID, error) {
	if acquire {
		if t.direct[idx].IsNull() {
			id, err := t.store.Acquire()
			if err != nil {
				return nil, err
			}
			t.direct[idx] = id
			t.nblocksVal++
		}
	}

	return t.direct[idx], nil
}

// ensureNode returns id, allocating and flushing a blank node block if id
// is still null. The blank flush is what keeps a never-visited node slot
// decoding back as all-null IDs rather than the backend's zero-value ID.
func (t *Tree) ensureNode(id *backend.ID) error {
	if !(*id).IsNull() {
		return nil
	}

	newID, err := t.store.Acquire()
	if err != nil {
		return err
	}

	blank := newNode(t.be, t.k)
	if err := flushNode(t.store, t.be, newID, blank); err != nil {
		return err
	}

	*id = newID
	return nil
}

// acquireNodeAt ensures slot idx of s's cached node names an index node,
// allocating one and flushing it blank (all null IDs) if the slot was null.
func (t *Tree) acquireNodeAt(s *slot, idx int) error {
	acquired, err := s.acquireAt(t.store, t.be, idx)
	if err != nil || !acquired {
		return err
	}
	return flushNode(t.store, t.be, s.node.get(idx), newNode(t.be, t.k))
}

func (t *Tree) lookupIndirect(idx int, acquire bool) (backend.ID, error) {
	if err := t.ensureNode(&t.indirect); err != nil {
		return nil, err
	}

	if err := t.cache[0].refresh(t.store, t.be, t.indirect, t.k, 0, t.metrics); err != nil {
		return nil, err
	}

	if acquire {
		acquired, err := t.cache[0].acquireAt(t.store, t.be, idx)
		if err != nil {
			return nil, err
		}
		if acquired {
			t.nblocksVal++
		}
	}

	return t.cache[0].node.get(idx), nil
}

func (t *Tree) lookupDIndirect(idx int, acquire bool) (backend.ID, error) {
	k := t.k
	i0, i1 := (idx/k)%k, idx%k

	if err := t.ensureNode(&t.dIndirect); err != nil {
		return nil, err
	}
	if err := t.cache[0].refresh(t.store, t.be, t.dIndirect, k, 0, t.metrics); err != nil {
		return nil, err
	}

	if acquire {
		if err := t.acquireNodeAt(&t.cache[0], i0); err != nil {
			return nil, err
		}
	} else if t.cache[0].node.get(i0).IsNull() {
		return t.be.NullID(), nil
	}

	mid := t.cache[0].node.get(i0)
	if err := t.cache[1].refresh(t.store, t.be, mid, k, 1, t.metrics); err != nil {
		return nil, err
	}

	if acquire {
		acquired, err := t.cache[1].acquireAt(t.store, t.be, i1)
		if err != nil {
			return nil, err
		}
		if acquired {
			t.nblocksVal++
		}
	}

	return t.cache[1].node.get(i1), nil
}

func (t *Tree) lookupTIndirect(idx int, acquire bool) (backend.ID, error) {
	k := t.k
	i0, i1, i2 := (idx/(k*k))%k, (idx/k)%k, idx%k

	if err := t.ensureNode(&t.tIndirect); err != nil {
		return nil, err
	}
	if err := t.cache[0].refresh(t.store, t.be, t.tIndirect, k, 0, t.metrics); err != nil {
		return nil, err
	}

	if acquire {
		if err := t.acquireNodeAt(&t.cache[0], i0); err != nil {
			return nil, err
		}
	} else if t.cache[0].node.get(i0).IsNull() {
		return t.be.NullID(), nil
	}

	mid0 := t.cache[0].node.get(i0)
	if err := t.cache[1].refresh(t.store, t.be, mid0, k, 1, t.metrics); err != nil {
		return nil, err
	}

	if acquire {
		if err := t.acquireNodeAt(&t.cache[1], i1); err != nil {
			return nil, err
		}
	} else if t.cache[1].node.get(i1).IsNull() {
		return t.be.NullID(), nil
	}

	mid1 := t.cache[1].node.get(i1)
	if err := t.cache[2].refresh(t.store, t.be, mid1, k, 2, t.metrics); err != nil {
		return nil, err
	}

	if acquire {
		acquired, err := t.cache[2].acquireAt(t.store, t.be, i2)
		if err != nil {
			return nil, err
		}
		if acquired {
			t.nblocksVal++
		}
	}

	return t.cache[2].node.get(i2), nil
}

// Encode appends the tree's on-disk representation (12 direct IDs, 3
// indirect root IDs, nblocks) to buf and returns the result. This is the
// plaintext form embedded directly in the archive header block.
func (t *Tree) Encode(buf []byte) []byte {
	for _, id := range t.direct {
		buf = append(buf, id.Bytes()...)
	}
	buf = append(buf, t.indirect.Bytes()...)
	buf = append(buf, t.dIndirect.Bytes()...)
	buf = append(buf, t.tIndirect.Bytes()...)
	buf = appendUint64(buf, t.nblocksVal)
	return buf
}

// Decode parses a tree previously written by Encode from buf, returning the
// remaining unconsumed bytes.
func Decode(store *blockio.Store, buf []byte) (*Tree, []byte, error) {
	be := store.Backend()
	idSize := be.IDSize()

	t := New(store)

	for i := range t.direct {
		id, err := be.DecodeID(buf[:idSize])
		if err != nil {
			return nil, nil, fmt.Errorf("tree: decode direct[%d]: %w", i, err)
		}
		t.direct[i] = id
		buf = buf[idSize:]
	}

	var err error
	if t.indirect, err = be.DecodeID(buf[:idSize]); err != nil {
		return nil, nil, fmt.Errorf("tree: decode indirect: %w", err)
	}
	buf = buf[idSize:]

	if t.dIndirect, err = be.DecodeID(buf[:idSize]); err != nil {
		return nil, nil, fmt.Errorf("tree: decode d_indirect: %w", err)
	}
	buf = buf[idSize:]

	if t.tIndirect, err = be.DecodeID(buf[:idSize]); err != nil {
		return nil, nil, fmt.Errorf("tree: decode t_indirect: %w", err)
	}
	buf = buf[idSize:]

	t.nblocksVal, buf = readUint64(buf)

	return t, buf, nil
}

// EncodedSize is the fixed number of bytes Encode produces for a backend
// whose IDs serialise to idSize bytes each.
func EncodedSize(idSize int) int {
	return (NumDirect+3)*idSize + 8
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint64(buf []byte) (uint64, []byte) {
	v := uint64(buf[0])<<56 | uint64(buf[1])<<48 | uint64(buf[2])<<40 | uint64(buf[3])<<32 |
		uint64(buf[4])<<24 | uint64(buf[5])<<16 | uint64(buf[6])<<8 | uint64(buf[7])
	return v, buf[8:]
}
