// Package btree implements the on-disk B+tree engine: node layout,
// search, insert/split, and erase/merge over pages satisfied by a
// cache.Manager. Keys and values are opaque fixed-size byte records;
// the container facade above this package is what knows how to
// encode/decode a particular K, V pair.
package btree

import (
	"encoding/binary"

	"github.com/ngina-wtf/pagetree/cache"
	"github.com/ngina-wtf/pagetree/pageio"
)

// layout describes the fixed sizes a Tree was opened with: the leaf
// record size (key size, plus mapped size for map/multimap trees) and
// the branch entry size (key size plus one trailing child id).
type layout struct {
	order      binary.ByteOrder
	pageSize   uint32
	keySize    uint32
	recordSize uint32 // leaf element size: keySize (+mappedSize for maps)
}

func (l layout) branchEntrySize() uint32 { return l.keySize + 4 }

func (l layout) leafCapacity() uint32 {
	return (l.pageSize - pageio.NodePrologueSize) / l.recordSize
}

func (l layout) branchCapacity() uint32 {
	// usable space minus the trailing end-pseudo-child id, divided by {key,child}
	return (l.pageSize - pageio.NodePrologueSize - 4) / l.branchEntrySize()
}

// view wraps a cached buffer with layout-aware accessors for either a
// leaf or a branch node page.
type view struct {
	h cache.Handle
	l layout
}

func newView(h cache.Handle, l layout) view { return view{h: h, l: l} }

func (v view) buf() []byte { return v.h.Buffer().Data() }

func (v view) level() uint8 {
	lvl, _ := pageio.GetPrologue(v.buf(), v.l.order)
	return lvl
}

func (v view) count() uint32 {
	_, c := pageio.GetPrologue(v.buf(), v.l.order)
	return c
}

func (v view) setCount(n uint32) {
	pageio.PutPrologue(v.buf(), v.l.order, v.level(), n)
}

func (v view) setLevel(lvl uint8) {
	pageio.PutPrologue(v.buf(), v.l.order, lvl, v.count())
}

func (v view) isLeaf() bool { return v.level() == pageio.LeafLevel }

func (v view) markDirty() { v.h.Buffer().MarkDirty() }

// --- leaf accessors ---

func (v view) leafRecord(i uint32) []byte {
	off := pageio.NodePrologueSize + i*v.l.recordSize
	return v.buf()[off : off+v.l.recordSize]
}

func (v view) leafKey(i uint32) []byte {
	return v.leafRecord(i)[:v.l.keySize]
}

func (v view) leafCapacity() uint32 { return v.l.leafCapacity() }

// insertLeafRecord shifts records at and after i right by one slot and
// writes rec into the freed slot. Caller must have verified capacity
// and must call setCount separately.
func (v view) insertLeafRecord(i uint32, rec []byte) {
	n := v.count()
	rs := v.l.recordSize
	base := uint32(pageio.NodePrologueSize)
	buf := v.buf()
	copy(buf[base+(i+1)*rs:base+(n+1)*rs], buf[base+i*rs:base+n*rs])
	copy(buf[base+i*rs:base+(i+1)*rs], rec)
}

// removeLeafRecord shifts records after i left by one slot, zeroing the
// vacated trailing slot. Caller must call setCount separately.
func (v view) removeLeafRecord(i uint32) {
	n := v.count()
	rs := v.l.recordSize
	base := uint32(pageio.NodePrologueSize)
	buf := v.buf()
	copy(buf[base+i*rs:base+(n-1)*rs], buf[base+(i+1)*rs:base+n*rs])
	clear(buf[base+(n-1)*rs : base+n*rs])
}

// --- branch accessors ---
//
// A branch with n keys stores n {key, child} records followed by the
// 4-byte trailing end-pseudo-child at the end of the record array
// (base + n*entrySize): slot n's child is addressed compactly, not as
// a full record, which is exactly the four bytes the capacity formula
// reserves (spec §3.2.2).

func (v view) branchKey(i uint32) []byte {
	off := pageio.NodePrologueSize + i*v.l.branchEntrySize()
	return v.buf()[off : off+v.l.keySize]
}

func (v view) setBranchKey(i uint32, key []byte) {
	off := pageio.NodePrologueSize + i*v.l.branchEntrySize()
	copy(v.buf()[off:off+v.l.keySize], key)
}

// branchChildOffset locates child i: inside record i for i < count, or
// at the compact trailing end-child slot for i == count. Callers that
// address the trailing child must therefore have the count field
// up to date before reading or writing through these accessors.
func (v view) branchChildOffset(i uint32) uint32 {
	off := uint32(pageio.NodePrologueSize) + i*v.l.branchEntrySize()
	if i == v.count() {
		return off
	}
	return off + v.l.keySize
}

func (v view) branchChild(i uint32) uint32 {
	off := v.branchChildOffset(i)
	return v.l.order.Uint32(v.buf()[off : off+4])
}

func (v view) setBranchChild(i uint32, id uint32) {
	off := v.branchChildOffset(i)
	v.l.order.PutUint32(v.buf()[off:off+4], id)
}

func (v view) branchCapacity() uint32 { return v.l.branchCapacity() }

// insertBranchEntry inserts key at slot i with newChildID as the child
// to its right: records at and after i, and the trailing end-child,
// shift right one slot, while the child that was at slot i stays put
// as the new key's left bound. Caller must have verified capacity and
// must call setCount separately (the children written here are
// addressed explicitly, so the stale count is harmless).
func (v view) insertBranchEntry(i uint32, key []byte, newChildID uint32) {
	n := v.count()
	es := v.l.branchEntrySize()
	base := uint32(pageio.NodePrologueSize)
	buf := v.buf()
	oldChild := v.branchChild(i)
	copy(buf[base+(i+1)*es:base+(n+1)*es+4], buf[base+i*es:base+n*es+4])
	v.setBranchKey(i, key)
	v.l.order.PutUint32(buf[base+i*es+v.l.keySize:], oldChild)
	if i < n {
		v.l.order.PutUint32(buf[base+(i+1)*es+v.l.keySize:], newChildID)
	} else {
		// Inserting at the pseudo slot: the new trailing end-child for
		// the grown count.
		v.l.order.PutUint32(buf[base+(n+1)*es:], newChildID)
	}
}

// removeBranchEntry removes the {key, child} pair at slot i (shifting
// everything after it, including the trailing end-child, left by one
// entry). Caller must call setCount separately.
func (v view) removeBranchEntry(i uint32) {
	n := v.count()
	es := v.l.branchEntrySize()
	base := uint32(pageio.NodePrologueSize)
	buf := v.buf()
	copy(buf[base+i*es:base+(n-1)*es+4], buf[base+(i+1)*es:base+n*es+4])
	clear(buf[base+(n-1)*es+4 : base+n*es+4])
}
