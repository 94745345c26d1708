package pageio

import "encoding/binary"

// Level values for the 1-byte tag every node page begins with.
const (
	LeafLevel     uint8 = 0
	FreeListLevel uint8 = 0xFF
)

// NodePrologueSize is the size, in bytes, of the level+count fields every
// node page (leaf, branch, or free-list entry) begins with, per spec §3.2.
const NodePrologueSize = 1 + 4

// PutPrologue writes the level byte and element count at the start of
// a node page buffer. The byte order is the file's declared order, a
// page-0 property the caller supplies consistently for every node.
func PutPrologue(buf []byte, order binary.ByteOrder, level uint8, count uint32) {
	buf[0] = level
	order.PutUint32(buf[1:5], count)
}

// GetPrologue reads the level byte and element count from the start of
// a node page buffer.
func GetPrologue(buf []byte, order binary.ByteOrder) (level uint8, count uint32) {
	return buf[0], order.Uint32(buf[1:5])
}
