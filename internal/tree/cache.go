package tree

import (
	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/blockio"
	"github.com/hollowpine/vaultarc/internal/obs"
)

// slot is one level of the tree's single-entry-per-level MRU node cache.
// Each indirection depth (indirect, double, triple) reuses the same one
// slot across every lookup at that depth; a lookup for a different node id
// evicts whatever was cached and loads the new one.
type slot struct {
	id   backend.ID
	node *node
}

func (s *slot) loaded(id backend.ID) bool {
	return s.node != nil && s.id != nil && s.id.Equal(id)
}

// refresh loads the node at id into the slot unless it is already cached.
// level is the depth (0-2) this slot represents, used only to label the
// cache hit/miss metric.
func (s *slot) refresh(store *blockio.Store, be backend.Backend, id backend.ID, k, level int, m *obs.Metrics) error {
	if s.loaded(id) {
		m.CacheHit(level)
		return nil
	}
	m.CacheMiss(level)

	n, err := loadNode(store, be, id, k)
	if err != nil {
		return err
	}

	s.id = id
	s.node = n
	return nil
}

// acquireAt ensures the slot's cached node has a non-null id at idx,
// allocating and flushing a new block if needed. It reports whether a new
// block was allocated.
func (s *slot) acquireAt(store *blockio.Store, be backend.Backend, idx int) (bool, error) {
	if !s.node.get(idx).IsNull() {
		return false, nil
	}

	newID, err := store.Acquire()
	if err != nil {
		return false, err
	}
	s.node.set(idx, newID)

	if err := flushNode(store, be, s.id, s.node); err != nil {
		return false, err
	}

	return true, nil
}
