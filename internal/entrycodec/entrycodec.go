// Package entrycodec serialises and deserialises one entry's header block:
// name, size, mode, and the created/modified/accessed timestamps, using a
// length-prefixed, tagged binary layout.
package entrycodec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hollowpine/vaultarc/internal/backend"
)

// Type is the closed set of entry kinds an archive can hold.
type Type uint32

const (
	TypeFile Type = iota
	TypeDirectory
	TypeSymlink
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Mode tags an entry's type plus its permission bits. Permission bits are
// opaque to the archive core; callers interpret them however they like.
type Mode struct {
	Type        Type
	Permissions uint32
}

func (m Mode) IsFile() bool      { return m.Type == TypeFile }
func (m Mode) IsDir() bool       { return m.Type == TypeDirectory }
func (m Mode) IsSymlink() bool   { return m.Type == TypeSymlink }

// Header is one entry's metadata, as stored in its header block.
type Header struct {
	Name     string
	Size     uint64
	Mode     Mode
	Created  int64
	Modified int64
	Accessed int64
}

// InvalidTypeError reports an entry header whose mode tag is not one of the
// known types -- a corrupted or foreign block where a header was expected.
type InvalidTypeError struct {
	ID  backend.ID
	Tag uint32
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("entrycodec: invalid type tag %d at %s", e.Tag, e.ID)
}

// Encode serialises h into a new byte slice. netBlockSize bounds the
// result; Encode returns an error if the name is too long to fit.
func Encode(h Header, netBlockSize uint32) ([]byte, error) {
	var buf bytes.Buffer

	nameBytes := []byte(h.Name)
	binary.Write(&buf, binary.BigEndian, uint32(len(nameBytes)))
	buf.Write(nameBytes)
	binary.Write(&buf, binary.BigEndian, h.Size)
	binary.Write(&buf, binary.BigEndian, uint32(h.Mode.Type))
	binary.Write(&buf, binary.BigEndian, h.Mode.Permissions)
	binary.Write(&buf, binary.BigEndian, h.Created)
	binary.Write(&buf, binary.BigEndian, h.Modified)
	binary.Write(&buf, binary.BigEndian, h.Accessed)

	if uint32(buf.Len()) > netBlockSize {
		return nil, fmt.Errorf("entrycodec: header for %q is %d bytes, exceeds net block size %d", h.Name, buf.Len(), netBlockSize)
	}

	return buf.Bytes(), nil
}

// Decode parses a Header out of plain, the decrypted contents of one
// header block. id is used only to annotate InvalidTypeError.
func Decode(id backend.ID, plain []byte) (Header, error) {
	r := bytes.NewReader(plain)

	var nameLen uint32
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read name length: %w", err)
	}
	nameBytes := make([]byte, nameLen)
	if nameLen > 0 {
		if _, err := r.Read(nameBytes); err != nil {
			return Header{}, fmt.Errorf("entrycodec: read name: %w", err)
		}
	}

	var h Header
	h.Name = string(nameBytes)

	if err := binary.Read(r, binary.BigEndian, &h.Size); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read size: %w", err)
	}

	var typeTag uint32
	if err := binary.Read(r, binary.BigEndian, &typeTag); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read mode type: %w", err)
	}
	if typeTag > uint32(TypeSymlink) {
		return Header{}, &InvalidTypeError{ID: id, Tag: typeTag}
	}
	h.Mode.Type = Type(typeTag)

	if err := binary.Read(r, binary.BigEndian, &h.Mode.Permissions); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read mode permissions: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &h.Created); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read created: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &h.Modified); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read modified: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &h.Accessed); err != nil {
		return Header{}, fmt.Errorf("entrycodec: read accessed: %w", err)
	}

	return h, nil
}

// ContentBlocks is the number of content slots a size-byte entry occupies
// at the given net block size: ceil(size / netBlockSize), 0 for size 0.
func ContentBlocks(size uint64, netBlockSize uint32) uint64 {
	if size == 0 {
		return 0
	}
	bs := uint64(netBlockSize)
	return (size + bs - 1) / bs
}
