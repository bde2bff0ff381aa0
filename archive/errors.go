package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/hollowpine/vaultarc/internal/backend"
	"github.com/hollowpine/vaultarc/internal/cipher"
	"github.com/hollowpine/vaultarc/internal/entrycodec"
	"github.com/hollowpine/vaultarc/internal/header"
	"github.com/hollowpine/vaultarc/internal/tree"
)

// Sentinel errors returned by archive operations. Wrap with fmt.Errorf and
// %w, check with errors.Is.
var (
	// ErrFull is returned by an append operation once the tree's
	// indirection scheme has exhausted its addressable range.
	ErrFull = tree.ErrFull

	// ErrWrongPassword is returned by Open when the supplied password (or
	// lack of one) does not unwrap the header's secret envelope.
	ErrWrongPassword = header.ErrWrongPassword

	// ErrNotTrustworthy is reachable via errors.Is when a block's
	// authentication tag fails to verify under an AE cipher -- a tampered
	// block, not a missing one. Reading or decoding never swallows this;
	// only a block a lookup fails to resolve at all is tolerated as a
	// premature end of archive.
	ErrNotTrustworthy = cipher.ErrNotTrustworthy

	// ErrUnexpectedEOF is reachable via errors.Is when a block decodes to
	// fewer bytes than the structure stored in it requires, or when
	// Reader.ReadAll stops short of the entry's recorded size.
	ErrUnexpectedEOF = io.ErrUnexpectedEOF

	// ErrInvalidBlockSize is returned when a backend's block size cannot
	// hold the structures the archive needs to serialise into one block
	// (an indirection node, an entry header, the archive header itself).
	ErrInvalidBlockSize = errors.New("archive: block size too small")

	// ErrNotFound is returned by Lookup when no entry matches.
	ErrNotFound = errors.New("archive: no matching entry")
)

// CorruptionErrorKind distinguishes the ways a read can discover the
// archive's on-disk structure doesn't mean what it should.
type CorruptionErrorKind int

const (
	// InvalidType: an entry header's mode tag is not file/directory/symlink.
	InvalidType CorruptionErrorKind = iota
	// InvalidNode: an indirection node failed to decode to ids_per_node
	// entries.
	InvalidNode
	// UnsupportedRevision: the header block's revision tag is newer than
	// this implementation understands.
	UnsupportedRevision
)

func (k CorruptionErrorKind) String() string {
	switch k {
	case InvalidType:
		return "invalid type"
	case InvalidNode:
		return "invalid node"
	case UnsupportedRevision:
		return "unsupported revision"
	default:
		return "unknown"
	}
}

// CorruptionError reports that the archive's on-disk structure is not
// internally consistent at a specific block, as opposed to a plain
// backend I/O failure.
type CorruptionError struct {
	Kind  CorruptionErrorKind
	ID    backend.ID
	Cause error
}

func (e *CorruptionError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("archive: corruption (%s) at block %s", e.Kind, e.ID)
	}
	return fmt.Sprintf("archive: corruption (%s)", e.Kind)
}

func (e *CorruptionError) Unwrap() error {
	return e.Cause
}

// wrapCorruption recognises the typed errors internal packages raise when
// on-disk structure doesn't decode to what it should, and translates them
// into a *CorruptionError an errors.As caller can match on. Errors it
// doesn't recognise -- plain backend I/O failures among them -- pass
// through unchanged: those are transport failures, not structural
// corruption, and Reader.Read's own tolerant/propagate split already
// decides how they surface.
func wrapCorruption(err error) error {
	if err == nil {
		return nil
	}

	var nodeErr *tree.InvalidNodeError
	if errors.As(err, &nodeErr) {
		return &CorruptionError{Kind: InvalidNode, ID: nodeErr.ID, Cause: err}
	}

	var revErr *header.UnsupportedRevisionError
	if errors.As(err, &revErr) {
		return &CorruptionError{Kind: UnsupportedRevision, Cause: err}
	}

	var typeErr *entrycodec.InvalidTypeError
	if errors.As(err, &typeErr) {
		return &CorruptionError{Kind: InvalidType, ID: typeErr.ID, Cause: err}
	}

	return err
}
