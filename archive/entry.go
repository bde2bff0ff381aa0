package archive

import (
	"github.com/hollowpine/vaultarc/internal/entrycodec"
)

// Entry is one archive member: a file, directory, or symlink header plus
// the tree index its header block lives at. Entries are visited strictly
// forward, in append order -- there is no way to walk backward.
type Entry struct {
	a     *Archive
	index uint64
	hdr   entrycodec.Header
}

// Name returns the entry's name as stored in its header.
func (e *Entry) Name() string { return e.hdr.Name }

// Size returns the entry's content length in bytes. Directories are
// always zero.
func (e *Entry) Size() uint64 { return e.hdr.Size }

// IsFile reports whether e is a regular file.
func (e *Entry) IsFile() bool { return e.hdr.Mode.IsFile() }

// IsDir reports whether e is a directory.
func (e *Entry) IsDir() bool { return e.hdr.Mode.IsDir() }

// IsSymlink reports whether e is a symlink.
func (e *Entry) IsSymlink() bool { return e.hdr.Mode.IsSymlink() }

// Mode returns the entry's type and permission bits.
func (e *Entry) Mode() entrycodec.Mode { return e.hdr.Mode }

// Created, Modified, and Accessed return the entry's timestamps as Unix
// seconds, matching the precision the header block stores.
func (e *Entry) Created() int64  { return e.hdr.Created }
func (e *Entry) Modified() int64 { return e.hdr.Modified }
func (e *Entry) Accessed() int64 { return e.hdr.Accessed }

// contentStart is the tree index of this entry's first content block, one
// past its own header block.
func (e *Entry) contentStart() uint64 {
	return e.index + 1
}

func (e *Entry) contentBlocks() uint64 {
	return entrycodec.ContentBlocks(e.hdr.Size, e.a.NetBlockSize())
}

// Next returns the entry immediately following e in append order. It
// returns ErrNotFound once e is the last entry in the archive.
func (e *Entry) Next() (*Entry, error) {
	nextIndex := e.contentStart() + e.contentBlocks()
	if nextIndex >= e.a.hdr.Tree.NBlocks() {
		return nil, ErrNotFound
	}
	return e.a.readEntryAt(nextIndex)
}

// AsFile returns a Reader over e's content. It does not check e.IsFile --
// callers that want strict typing should check IsFile/IsDir/IsSymlink
// themselves, since a symlink's target is read the same way.
func (e *Entry) AsFile() *Reader {
	return &Reader{
		a:          e.a,
		startIndex: e.contentStart(),
		size:       e.hdr.Size,
	}
}

// AsSymlink reads and returns e's entire content, interpreted as a
// symlink's target path.
func (e *Entry) AsSymlink() (string, error) {
	buf, err := e.AsFile().ReadAll()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
