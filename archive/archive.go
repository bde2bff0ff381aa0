// Package archive is the public facade over the encrypted, block-addressed,
// append-only container: Create or Open one against a backend.Backend, then
// append and iterate entries. A functional-options constructor pair returns
// a single handle type that owns every lower layer and exposes a narrow
// verb-based API.
package archive

import (
	"fmt"
	"time"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/blockio"
	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/entrycodec"
	"github.com/hollowpine/vaultarc/internal/header"
	"github.com/hollowpine/vaultarc/internal/kdf"
	"github.com/hollowpine/vaultarc/internal/obs"
	"github.com/hollowpine/vaultarc/internal/tree"
)

// minNetBlockSize is a coarse lower bound on the net block size: enough for
// an entry header with a short name, not for the archive header. Backends
// whose net block size is below it are rejected up front; a block at or
// above it can still be too small for the encoded archive header (its
// envelope and tree), which flushHeader reports as ErrInvalidBlockSize.
const minNetBlockSize = 64

// Archive is an open handle onto one encrypted archive. It is not safe for
// concurrent use from more than one goroutine: the archive's own scheduling
// model is single-threaded and cooperative, matching the backend it wraps.
type Archive struct {
	be      backend.Backend
	store   *blockio.Store
	hdr     *header.Header
	cfg     *config
	logger  obs.Logger
	metrics *obs.Metrics
}

// Create initialises a new archive on be, writing a fresh header block at
// be.TopID(). be must be empty; Create does not check this, it simply
// overwrites whatever is at TopID().
func Create(be backend.Backend, opts ...Option) (*Archive, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("archive: create: %w", err)
		}
	}

	if be.BlockSize() < minNetBlockSize+uint32(cfg.cipher.TagSize()) {
		return nil, ErrInvalidBlockSize
	}

	kd, err := kdfFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create: %w", err)
	}

	h, err := header.New(cfg.cipher, kd)
	if err != nil {
		return nil, err
	}

	ctx, err := cipher.NewContext(h.Cipher, h.DataKey, h.DataIV)
	if err != nil {
		return nil, fmt.Errorf("archive: create: build data cipher: %w", err)
	}

	storeOpts := storeOptions(cfg)
	store := blockio.New(be, ctx, storeOpts...)

	h.Tree = tree.New(store)
	h.Tree.SetMetrics(cfg.metrics)

	now := time.Now().Unix()
	h.Created = now
	h.Modified = now

	a := &Archive{
		be:      be,
		store:   store,
		hdr:     h,
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}

	if err := a.flushHeader(); err != nil {
		return nil, fmt.Errorf("archive: create: %w", err)
	}

	a.logger.Debugf("created archive: cipher=%s kdf=%v", h.Cipher, h.KDF)
	return a, nil
}

// kdfFromConfig builds a fresh PBKDF2 configuration (with a new random
// salt) when cfg's cipher needs a key; ciphers with no key need no KDF.
func kdfFromConfig(cfg *config) (*kdf.KDF, error) {
	if cfg.cipher.KeySize() == 0 {
		return nil, nil
	}
	return kdf.NewPBKDF2(cfg.kdfDigest, cfg.kdfIterations, cfg.kdfSaltLen)
}

// Open reads the header block from be, unwraps its secret envelope with
// cfg.password, and returns a handle positioned at the archive's existing
// content.
func Open(be backend.Backend, opts ...Option) (*Archive, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("archive: open: %w", err)
		}
	}

	raw := make([]byte, be.BlockSize())
	if _, err := be.Read(be.TopID(), raw); err != nil {
		return nil, fmt.Errorf("archive: open: read header block: %w", backend.Wrap("read", err))
	}

	h, err := header.Decode(be, raw, cfg.password)
	if err != nil {
		return nil, wrapCorruption(err)
	}

	ctx, err := cipher.NewContext(h.Cipher, h.DataKey, h.DataIV)
	if err != nil {
		return nil, fmt.Errorf("archive: open: build data cipher: %w", err)
	}

	storeOpts := storeOptions(cfg)
	store := blockio.New(be, ctx, storeOpts...)
	h.Tree.SetMetrics(cfg.metrics)

	a := &Archive{
		be:      be,
		store:   store,
		hdr:     h,
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}

	a.logger.Debugf("opened archive: nblocks=%d nfiles=%d", h.Tree.NBlocks(), h.NFiles)
	return a, nil
}

func storeOptions(cfg *config) []blockio.Option {
	var opts []blockio.Option
	if cfg.metrics != nil {
		opts = append(opts, blockio.WithMetrics(cfg.metrics))
	}
	if cfg.circuit != nil {
		opts = append(opts, blockio.WithCircuitBreaker(cfg.circuit))
	}
	return opts
}

// flushHeader re-encodes the header (including the current tree and file
// count) and writes it back to be.TopID(). This is the archive's sole
// commit point: everything written before a successful flushHeader is only
// durable once this call returns without error.
func (a *Archive) flushHeader() error {
	buf, err := a.hdr.Encode(a.cfg.password)
	if err != nil {
		return fmt.Errorf("archive: flush header: %w", err)
	}
	if uint32(len(buf)) > a.be.BlockSize() {
		return fmt.Errorf("archive: flush header: encoded header %d bytes exceeds block size %d: %w", len(buf), a.be.BlockSize(), ErrInvalidBlockSize)
	}
	if _, err := a.be.Write(a.be.TopID(), buf); err != nil {
		return backend.Wrap("write", err)
	}
	return nil
}

// Info summarises the archive's top-level counters.
type Info struct {
	Created  time.Time
	Modified time.Time
	NBlocks  uint64
	NFiles   uint64
}

// Info returns the archive's current summary counters.
func (a *Archive) Info() Info {
	return Info{
		Created:  time.Unix(a.hdr.Created, 0).UTC(),
		Modified: time.Unix(a.hdr.Modified, 0).UTC(),
		NBlocks:  a.hdr.Tree.NBlocks(),
		NFiles:   a.hdr.NFiles,
	}
}

// NetBlockSize is the usable plaintext capacity of one content or header
// block in this archive.
func (a *Archive) NetBlockSize() uint32 {
	return a.store.NetBlockSize()
}

// First returns the archive's first entry, in append order. It returns
// ErrNotFound if the archive is empty.
func (a *Archive) First() (*Entry, error) {
	if a.hdr.Tree.NBlocks() == 0 {
		return nil, ErrNotFound
	}
	return a.readEntryAt(0)
}

// Lookup scans from the first entry for one named name.
func (a *Archive) Lookup(name string) (*Entry, error) {
	e, err := a.First()
	for err == nil {
		if e.Name() == name {
			return e, nil
		}
		e, err = e.Next()
	}
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	return nil, err
}

func (a *Archive) readEntryAt(index uint64) (*Entry, error) {
	id, err := a.hdr.Tree.Lookup(int(index))
	if err != nil {
		return nil, wrapCorruption(fmt.Errorf("archive: read entry at %d: %w", index, err))
	}
	plain, err := a.store.Read(id)
	if err != nil {
		return nil, fmt.Errorf("archive: read entry header at %d: %w", index, err)
	}
	hdr, err := entrycodec.Decode(id, plain)
	if err != nil {
		return nil, wrapCorruption(err)
	}
	return &Entry{a: a, index: index, hdr: hdr}, nil
}

// appendHeader acquires a fresh tree block, writes h into it, bumps
// NFiles/Modified, and flushes the archive header. It returns the tree
// index the new entry's header landed at.
func (a *Archive) appendHeader(h entrycodec.Header) (uint64, error) {
	id, err := a.hdr.Tree.Acquire()
	if err != nil {
		return 0, wrapCorruption(err)
	}
	index := a.hdr.Tree.NBlocks() - 1

	buf, err := entrycodec.Encode(h, a.NetBlockSize())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBlockSize, err)
	}
	if err := a.store.Write(id, buf); err != nil {
		return 0, err
	}

	a.hdr.NFiles++
	a.hdr.Modified = time.Now().Unix()
	if err := a.flushHeader(); err != nil {
		return 0, err
	}
	a.metrics.EntryAppendedInc()

	return index, nil
}

// AppendDirectory appends a zero-size directory entry named name.
func (a *Archive) AppendDirectory(name string) (*Entry, error) {
	now := time.Now().Unix()
	h := entrycodec.Header{
		Name:     name,
		Mode:     entrycodec.Mode{Type: entrycodec.TypeDirectory},
		Created:  now,
		Modified: now,
		Accessed: now,
	}
	index, err := a.appendHeader(h)
	if err != nil {
		return nil, fmt.Errorf("archive: append directory %q: %w", name, err)
	}
	return &Entry{a: a, index: index, hdr: h}, nil
}

// AppendFile appends a file entry named name and returns a Writer for its
// content. The entry's header is committed empty (size 0) immediately;
// each Write call grows it and re-commits.
func (a *Archive) AppendFile(name string) (*Writer, error) {
	now := time.Now().Unix()
	h := entrycodec.Header{
		Name:     name,
		Mode:     entrycodec.Mode{Type: entrycodec.TypeFile},
		Created:  now,
		Modified: now,
		Accessed: now,
	}
	index, err := a.appendHeader(h)
	if err != nil {
		return nil, fmt.Errorf("archive: append file %q: %w", name, err)
	}
	return &Writer{a: a, headerIndex: index, hdr: h}, nil
}

// AppendSymlink appends a symlink entry named name whose content is target,
// written in full immediately. Unlike AppendFile, callers never see a
// Writer: a symlink's target is a single atomic value, not a stream.
func (a *Archive) AppendSymlink(name, target string) (*Entry, error) {
	now := time.Now().Unix()
	h := entrycodec.Header{
		Name:     name,
		Mode:     entrycodec.Mode{Type: entrycodec.TypeSymlink},
		Created:  now,
		Modified: now,
		Accessed: now,
	}
	index, err := a.appendHeader(h)
	if err != nil {
		return nil, fmt.Errorf("archive: append symlink %q: %w", name, err)
	}

	w := &Writer{a: a, headerIndex: index, hdr: h}
	if err := w.WriteAll([]byte(target)); err != nil {
		return nil, fmt.Errorf("archive: append symlink %q: write target: %w", name, err)
	}

	return &Entry{a: a, index: index, hdr: w.hdr}, nil
}
