package tree

import (
	"fmt"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/blockio"
)

// node is one indirect block: a fixed-capacity sequence of IDs, serialised
// to exactly one block. Slots that have never been acquired hold the
// backend's null ID.
type node struct {
	ids []backend.ID
}

// InvalidNodeError reports an indirection node block that failed to decode
// to its expected ids-per-node width -- a corrupted or foreign block where
// a node was expected.
type InvalidNodeError struct {
	ID    backend.ID
	Cause error
}

func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("tree: invalid node at %s: %v", e.ID, e.Cause)
}

func (e *InvalidNodeError) Unwrap() error {
	return e.Cause
}

func newNode(be backend.Backend, k int) *node {
	n := &node{ids: make([]backend.ID, k)}
	for i := range n.ids {
		n.ids[i] = be.NullID()
	}
	return n
}

func (n *node) get(idx int) backend.ID {
	return n.ids[idx]
}

func (n *node) set(idx int, id backend.ID) {
	n.ids[idx] = id
}

func (n *node) encode(be backend.Backend) []byte {
	idSize := be.IDSize()
	buf := make([]byte, 0, len(n.ids)*idSize)
	for _, id := range n.ids {
		buf = append(buf, id.Bytes()...)
	}
	return buf
}

func decodeNode(be backend.Backend, id backend.ID, buf []byte, k int) (*node, error) {
	idSize := be.IDSize()
	if len(buf) < k*idSize {
		return nil, &InvalidNodeError{ID: id, Cause: fmt.Errorf("have %d bytes, want %d", len(buf), k*idSize)}
	}

	n := &node{ids: make([]backend.ID, k)}
	for i := 0; i < k; i++ {
		decoded, err := be.DecodeID(buf[i*idSize : (i+1)*idSize])
		if err != nil {
			return nil, &InvalidNodeError{ID: id, Cause: fmt.Errorf("slot %d: %w", i, err)}
		}
		n.ids[i] = decoded
	}

	return n, nil
}

// loadNode reads and decodes the node stored at id.
func loadNode(store *blockio.Store, be backend.Backend, id backend.ID, k int) (*node, error) {
	plain, err := store.Read(id)
	if err != nil {
		return nil, err
	}
	return decodeNode(be, id, plain, k)
}

// flushNode encodes and writes n to id.
func flushNode(store *blockio.Store, be backend.Backend, id backend.ID, n *node) error {
	return store.Write(id, n.encode(be))
}
