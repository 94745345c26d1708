package cache

import "container/list"

// DummyPageID is the sentinel page id reserved for a manager-less,
// uncached buffer used only as the anchor of a container's end
// iterator (spec §3.3).
const DummyPageID uint32 = 0xFFFFFFFF

// Buffer owns one page's worth of bytes plus the bookkeeping the
// manager needs to cache, evict, and write it back (spec §3.3).
type Buffer struct {
	pageID    uint32
	useCount  uint32
	manager   *Manager // nil once orphaned (manager closed with handles outstanding)
	dirty     bool
	neverFree bool // pinned once loaded; never placed on the available list
	data      []byte

	availElem *list.Element // membership in Manager.available; nil if not on the list
}

// PageID is this buffer's page identity.
func (b *Buffer) PageID() uint32 { return b.pageID }

// Data is the buffer's page-sized backing array. Callers that mutate it
// must call MarkDirty.
func (b *Buffer) Data() []byte { return b.data }

// Dirty reports whether this buffer's contents differ from what's on disk.
func (b *Buffer) Dirty() bool { return b.dirty }

// MarkDirty flags the buffer as needing a write-back before its next eviction.
func (b *Buffer) MarkDirty() { b.dirty = true }

// NeverFree reports whether this buffer is pinned in cache once loaded
// (the "cache branches" option, spec §3.3/§5).
func (b *Buffer) NeverFree() bool { return b.neverFree }

// UseCount is the number of outstanding handles referencing this buffer.
func (b *Buffer) UseCount() uint32 { return b.useCount }

// IsDummy reports whether this is the manager-less sentinel buffer used
// by a container's end iterator.
func (b *Buffer) IsDummy() bool { return b.pageID == DummyPageID }

// Handle is a reference-counted pointer to a cached Buffer (spec §3.4).
// Unlike the original's buffer_ptr, Go has no copy constructors or
// destructors to hook, so retain/release here are explicit: Retain
// bumps the use count and must be paired with a Release; letting a
// Handle go out of scope without calling Release leaks a pin. This is
// the design note's "separate pin_count... without shared ownership
// graphs" suggestion made concrete.
type Handle struct {
	buf *Buffer
}

// NewDummyHandle wraps a fresh manager-less sentinel buffer in a
// Handle, for use as a container's end-iterator anchor.
func NewDummyHandle() Handle { return Handle{buf: Dummy()} }

// Buffer returns the underlying cached page. Valid only while the
// handle has not been released.
func (h Handle) Buffer() *Buffer { return h.buf }

// Valid reports whether this handle still refers to a buffer.
func (h Handle) Valid() bool { return h.buf != nil }

// Retain returns a new Handle to the same buffer, incrementing its use
// count — the explicit equivalent of copying a buffer_ptr.
func (h Handle) Retain() Handle {
	if h.buf == nil {
		return Handle{}
	}
	h.buf.useCount++
	return Handle{buf: h.buf}
}

// Release decrements the buffer's use count, running the manager's
// use-count-reaches-zero policy (spec §4.D "the critical path") if this
// was the last outstanding handle. Releasing an already-invalid Handle
// is a no-op.
func (h *Handle) Release() {
	if h.buf == nil {
		return
	}
	b := h.buf
	h.buf = nil

	if b.pageID == DummyPageID {
		return
	}
	if b.useCount == 0 {
		return
	}
	b.useCount--
	if b.useCount != 0 {
		return
	}
	if b.manager == nil {
		// Orphaned: the manager closed while this handle was outstanding.
		return
	}
	b.manager.onReleased(b)
}
