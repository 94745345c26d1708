// Package pageio defines the on-disk layout of page 0 (the container
// header) and the common node-page prologue (level byte + element
// count) that every other page on disk begins with. It knows nothing
// about caching or tree structure — only byte layout, per spec §3.1/§3.2.
package pageio

import (
	"encoding/binary"
	"fmt"

	"github.com/ngina-wtf/pagetree/errs"
)

// Marker is the 6-byte magic stamped at the start of every header page.
var Marker = [6]byte{'p', 'g', 't', 'r', 'e', 'e'}

// WildcardSignature skips the signature check on open.
const WildcardSignature uint64 = 0xFFFFFFFFFFFFFFFF

// NullPageID is the reserved page id meaning "null / none".
const NullPageID uint32 = 0

const (
	splashText = "pagetree ordered b+tree"
	splashLen  = 32
	labelLen   = 32
)

// Endianness tags stored in the header, independent of host byte order.
type Endianness uint8

const (
	BigEndian    Endianness = 1
	LittleEndian Endianness = 2
)

func (e Endianness) Order() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Kind records whether a container is a set/multiset (key-only) or a
// map/multimap (key + mapped value), and whether keys must be unique.
type Kind struct {
	Unique  bool
	KeyOnly bool
}

// Header is the fully decoded page-0 layout (spec §3.1).
type Header struct {
	Endianness     Endianness
	RootLevel      uint8
	ElementCount   uint64
	Signature      uint64
	Flags          uint32
	KeySize        uint32
	MappedSize     uint32
	NodeSize       uint32
	RootNodeID     uint32
	FirstNodeID    uint32
	LastNodeID     uint32
	NodeCount      uint32
	FreeListHeadID uint32
	MajorVersion   uint16
	MinorVersion   uint16
	Splash         string
	Label          string
}

// HeaderSize is the fixed on-disk size, in bytes, of the encoded header
// fields below (not including any page padding up to NodeSize).
// marker, endianness, root level, element count, signature, then nine
// uint32 fields (flags, key/mapped/node sizes, root/first/last node
// ids, node count, free-list head), versions, splash, label.
const HeaderSize = 6 + 1 + 1 + 8 + 8 + 9*4 + 2 + 2 + splashLen + labelLen

// MajorVersion/MinorVersion are the format version this package writes.
const (
	MajorVersion uint16 = 1
	MinorVersion uint16 = 0
)

// MinNodeSize is the smallest page size this package will agree to
// operate on: spec §3.2.2 requires room for at least three elements of
// either kind, and a header page must also hold HeaderSize bytes.
const MinNodeSize = 128

// NewHeader builds the header for a brand-new file.
func NewHeader(order Endianness, nodeSize uint32, keySize, mappedSize uint32, label string, signature uint64, k Kind) Header {
	var flags uint32
	if k.Unique {
		flags |= FlagUnique
	}
	if k.KeyOnly {
		flags |= FlagKeyOnly
	}
	return Header{
		Endianness:     order,
		RootLevel:      0,
		ElementCount:   0,
		Signature:      signature,
		Flags:          flags,
		KeySize:        keySize,
		MappedSize:     mappedSize,
		NodeSize:       nodeSize,
		RootNodeID:     1,
		FirstNodeID:    1,
		LastNodeID:     1,
		NodeCount:      2, // page 0 (header) + page 1 (initial root leaf)
		FreeListHeadID: NullPageID,
		MajorVersion:   MajorVersion,
		MinorVersion:   MinorVersion,
		Splash:         splashText,
		Label:          label,
	}
}

// Bitmask values stored in Header.Flags.
const (
	FlagUnique  uint32 = 1 << 0
	FlagKeyOnly uint32 = 1 << 1
)

func (h Header) Kind() Kind {
	return Kind{
		Unique:  h.Flags&FlagUnique != 0,
		KeyOnly: h.Flags&FlagKeyOnly != 0,
	}
}

func putString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func getString(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}

// Marshal encodes the header into a pageSize-length buffer. pageSize
// must be at least HeaderSize and at least MinNodeSize.
func Marshal(h Header, pageSize uint32) ([]byte, error) {
	if pageSize < MinNodeSize {
		return nil, errs.New(errs.KindInvalidArgument, fmt.Sprintf("page size %d below minimum %d", pageSize, MinNodeSize))
	}
	if int(pageSize) < HeaderSize {
		return nil, errs.New(errs.KindInvalidArgument, fmt.Sprintf("page size %d too small for header (%d bytes)", pageSize, HeaderSize))
	}
	buf := make([]byte, pageSize)
	order := h.Endianness.Order()

	off := 0
	copy(buf[off:], Marker[:])
	off += 6
	buf[off] = byte(h.Endianness)
	off++
	buf[off] = h.RootLevel
	off++
	order.PutUint64(buf[off:], h.ElementCount)
	off += 8
	order.PutUint64(buf[off:], h.Signature)
	off += 8
	order.PutUint32(buf[off:], h.Flags)
	off += 4
	order.PutUint32(buf[off:], h.KeySize)
	off += 4
	order.PutUint32(buf[off:], h.MappedSize)
	off += 4
	order.PutUint32(buf[off:], h.NodeSize)
	off += 4
	order.PutUint32(buf[off:], h.RootNodeID)
	off += 4
	order.PutUint32(buf[off:], h.FirstNodeID)
	off += 4
	order.PutUint32(buf[off:], h.LastNodeID)
	off += 4
	order.PutUint32(buf[off:], h.NodeCount)
	off += 4
	order.PutUint32(buf[off:], h.FreeListHeadID)
	off += 4
	order.PutUint16(buf[off:], h.MajorVersion)
	off += 2
	order.PutUint16(buf[off:], h.MinorVersion)
	off += 2
	putString(buf[off:off+splashLen], h.Splash)
	off += splashLen
	putString(buf[off:off+labelLen], h.Label)
	off += labelLen

	return buf, nil
}

// Unmarshal decodes a header page. It trusts the endianness byte at
// offset 6 to select the byte order for every other multi-byte field,
// per spec §3.1 ("endian-flipped on load/store if it differs from host
// order" — here we simply always decode using the stored tag).
func Unmarshal(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errs.New(errs.KindNotABTree, "header page shorter than minimum header size")
	}
	var marker [6]byte
	copy(marker[:], buf[:6])
	if marker != Marker {
		return Header{}, errs.New(errs.KindNotABTree, "magic marker mismatch")
	}

	e := Endianness(buf[6])
	if e != BigEndian && e != LittleEndian {
		return Header{}, errs.FieldMismatch(errs.KindEndiannessMismatch, "endianness", fmt.Errorf("unrecognized endianness tag %d", e))
	}
	order := e.Order()

	h := Header{Endianness: e}
	off := 7
	h.RootLevel = buf[off]
	off++
	h.ElementCount = order.Uint64(buf[off:])
	off += 8
	h.Signature = order.Uint64(buf[off:])
	off += 8
	h.Flags = order.Uint32(buf[off:])
	off += 4
	h.KeySize = order.Uint32(buf[off:])
	off += 4
	h.MappedSize = order.Uint32(buf[off:])
	off += 4
	h.NodeSize = order.Uint32(buf[off:])
	off += 4
	h.RootNodeID = order.Uint32(buf[off:])
	off += 4
	h.FirstNodeID = order.Uint32(buf[off:])
	off += 4
	h.LastNodeID = order.Uint32(buf[off:])
	off += 4
	h.NodeCount = order.Uint32(buf[off:])
	off += 4
	h.FreeListHeadID = order.Uint32(buf[off:])
	off += 4
	h.MajorVersion = order.Uint16(buf[off:])
	off += 2
	h.MinorVersion = order.Uint16(buf[off:])
	off += 2
	h.Splash = getString(buf[off : off+splashLen])
	off += splashLen
	h.Label = getString(buf[off : off+labelLen])
	off += labelLen

	return h, nil
}

// Validate checks an opened file's header against what the caller
// expects, per spec §4.I: signature, unique/set-vs-map flags, key/mapped
// sizes, and major version (the marker and endianness tag are already
// checked by Unmarshal).
// wildcard signature skips the signature check; keyVaries/mappedVaries
// suppress the corresponding size check for callers whose encoding is
// declared variable-length. Any mismatch returns a field-tagged
// *errs.Error.
func Validate(h Header, wantSignature uint64, wantKind Kind, wantKeySize, wantMappedSize uint32, keyVaries, mappedVaries bool) error {
	if wantSignature != WildcardSignature && h.Signature != WildcardSignature && h.Signature != wantSignature {
		return errs.FieldMismatch(errs.KindSignatureMismatch, "signature",
			fmt.Errorf("file has %#x, caller expected %#x", h.Signature, wantSignature))
	}
	got := h.Kind()
	if got.Unique != wantKind.Unique || got.KeyOnly != wantKind.KeyOnly {
		return errs.FieldMismatch(errs.KindKindMismatch, "kind",
			fmt.Errorf("file is (unique=%v,keyOnly=%v), caller expected (unique=%v,keyOnly=%v)",
				got.Unique, got.KeyOnly, wantKind.Unique, wantKind.KeyOnly))
	}
	if !keyVaries && h.KeySize != wantKeySize {
		return errs.FieldMismatch(errs.KindSizeMismatch, "key_size",
			fmt.Errorf("file has %d, caller expected %d", h.KeySize, wantKeySize))
	}
	if !mappedVaries && h.MappedSize != wantMappedSize {
		return errs.FieldMismatch(errs.KindSizeMismatch, "mapped_size",
			fmt.Errorf("file has %d, caller expected %d", h.MappedSize, wantMappedSize))
	}
	if h.MajorVersion != MajorVersion {
		return errs.FieldMismatch(errs.KindSizeMismatch, "major_version",
			fmt.Errorf("file has major version %d, this build supports %d", h.MajorVersion, MajorVersion))
	}
	return nil
}
