package container

import (
	"cmp"
	"encoding/binary"
)

// Codec is the fixed-size encode/decode boundary between a Go value
// type and the raw byte records btree.Tree operates on: the engine is
// opaque to key/value types, everything above it owns the translation.
//
// A codec's byte layout does not need to preserve ordering — comparison
// always happens on decoded values through the container's comparator —
// but it must be deterministic and exactly Size bytes.
type Codec[T any] struct {
	// Size is the fixed encoded length in bytes.
	Size uint32
	// Encode writes v's encoding into dst, which is exactly Size bytes.
	Encode func(dst []byte, v T)
	// Decode reads a value back out of src, which is exactly Size bytes.
	Decode func(src []byte) T
}

func (c Codec[T]) encodeInto(dst []byte, v T) { c.Encode(dst[:c.Size], v) }

// OrderedCompare is the comparator for any natively ordered key type.
func OrderedCompare[T cmp.Ordered]() func(T, T) int { return cmp.Compare[T] }

// Int64Codec encodes an int64 as 8 little-endian bytes.
func Int64Codec() Codec[int64] {
	return Codec[int64]{
		Size:   8,
		Encode: func(dst []byte, v int64) { binary.LittleEndian.PutUint64(dst, uint64(v)) },
		Decode: func(src []byte) int64 { return int64(binary.LittleEndian.Uint64(src)) },
	}
}

// Uint64Codec encodes a uint64 as 8 little-endian bytes.
func Uint64Codec() Codec[uint64] {
	return Codec[uint64]{
		Size:   8,
		Encode: func(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) },
		Decode: func(src []byte) uint64 { return binary.LittleEndian.Uint64(src) },
	}
}

// Int32Codec encodes an int32 as 4 little-endian bytes.
func Int32Codec() Codec[int32] {
	return Codec[int32]{
		Size:   4,
		Encode: func(dst []byte, v int32) { binary.LittleEndian.PutUint32(dst, uint32(v)) },
		Decode: func(src []byte) int32 { return int32(binary.LittleEndian.Uint32(src)) },
	}
}

// Uint32Codec encodes a uint32 as 4 little-endian bytes.
func Uint32Codec() Codec[uint32] {
	return Codec[uint32]{
		Size:   4,
		Encode: func(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) },
		Decode: func(src []byte) uint32 { return binary.LittleEndian.Uint32(src) },
	}
}

// StringCodec encodes a string into a fixed-width, zero-padded field of
// n bytes; longer strings are truncated, and trailing zero bytes are
// stripped on decode.
func StringCodec(n uint32) Codec[string] {
	return Codec[string]{
		Size: n,
		Encode: func(dst []byte, v string) {
			c := copy(dst, v)
			for i := c; i < len(dst); i++ {
				dst[i] = 0
			}
		},
		Decode: func(src []byte) string {
			end := len(src)
			for end > 0 && src[end-1] == 0 {
				end--
			}
			return string(src[:end])
		},
	}
}

// nothingCodec is the zero-width mapped codec backing set and multiset
// containers: a leaf record is the key alone.
func nothingCodec() Codec[struct{}] {
	return Codec[struct{}]{
		Size:   0,
		Encode: func([]byte, struct{}) {},
		Decode: func([]byte) struct{} { return struct{}{} },
	}
}
