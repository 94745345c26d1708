// Package cache implements the reference-counted page cache that sits
// between the B+tree engine and the on-disk file: a by-id lookup table
// plus an LRU-ordered list of buffers eligible for eviction, completing
// the buffer-pool shape the teacher repository started but never
// finished wiring to a real disk backend.
package cache

import (
	"container/list"
	"fmt"

	"github.com/ngina-wtf/pagetree/diskio"
	"github.com/ngina-wtf/pagetree/errs"
)

// Stats holds the buffer manager's diagnostic counters (spec §4.D).
type Stats struct {
	ActiveBuffersRead    uint64 // cache hit, buffer already had use-count > 0
	AvailableBuffersRead uint64 // cache hit, buffer pulled off the available list
	NeverFreeBuffersRead uint64 // cache hit on a never_free buffer
	FileBuffersRead      uint64 // page bytes loaded from disk
	FileBuffersWritten   uint64 // page bytes written to disk (eviction or flush)
	NewBufferRequests    uint64 // NewBuffer calls
	BufferAllocs         uint64 // buffers newly allocated (not reused from available)
	NeverFreeHonored     uint64 // never_free pages loaded from disk or released, kept out of available
}

// Manager maps page ids to cached Buffers, satisfying misses from disk
// through a diskio.File and evicting least-recently-used buffers once
// the cache exceeds MaxCacheSize (spec §3.4/§4.D).
type Manager struct {
	file     *diskio.File
	pageSize uint32
	readOnly bool

	byID      map[uint32]*Buffer
	available *list.List // of *Buffer, front = LRU, back = MRU

	maxCacheSize int64 // -1 means unbounded
	nextPageID   uint32

	// When non-nil, eviction victims among the available buffers are
	// chosen by backward k-distance instead of strict LRU order.
	replacer *LruKReplacer

	stats Stats
}

// Open wraps an already-opened diskio.File with a buffer cache.
// pageSize must match the file's declared page size; nextPageID is the
// first id not yet allocated (typically derived from file size /
// pageSize by the caller, since page 0 is the header).
func Open(f *diskio.File, pageSize uint32, nextPageID uint32, maxCacheSize int64, readOnly bool) *Manager {
	return &Manager{
		file:         f,
		pageSize:     pageSize,
		readOnly:     readOnly,
		byID:         make(map[uint32]*Buffer),
		available:    list.New(),
		maxCacheSize: maxCacheSize,
		nextPageID:   nextPageID,
	}
}

// MaxCacheSize returns the current LRU target (-1 for unbounded).
func (m *Manager) MaxCacheSize() int64 { return m.maxCacheSize }

// SetMaxCacheSize adjusts the LRU target. Per spec §3.5 the caller
// (the container, on new-root creation) is responsible for never
// lowering this below root_level+1 during active operations; the
// manager itself does not reject a lower bound.
func (m *Manager) SetMaxCacheSize(n int64) { m.maxCacheSize = n }

// MaxCacheMegabytes sets the LRU target by converting a megabyte
// budget into a buffer count using the manager's page size.
func (m *Manager) MaxCacheMegabytes(mb int64) {
	if mb < 0 {
		m.maxCacheSize = -1
		return
	}
	bytesPerBuf := int64(m.pageSize)
	if bytesPerBuf <= 0 {
		bytesPerBuf = 1
	}
	m.maxCacheSize = (mb * 1024 * 1024) / bytesPerBuf
}

// UseLruK switches victim selection among available buffers from
// strict LRU order to the LRU-K policy, distinguishing the k most
// recent accesses per page. Call before the first buffer operation.
func (m *Manager) UseLruK(k int) {
	if k < 1 {
		k = 1
	}
	m.replacer = NewLruKReplacer(k, int(m.maxCacheSize))
}

// Snapshot is a point-in-time report of the cache's state, the
// structured stand-in for the original's dump_buffers diagnostics.
type Snapshot struct {
	PageSize         uint32
	MaxCacheSize     int64
	ResidentBuffers  int
	AvailableBuffers int
	NextPageID       uint32
	Stats            Stats
}

// TakeSnapshot captures the cache's current shape and counters.
func (m *Manager) TakeSnapshot() Snapshot {
	return Snapshot{
		PageSize:         m.pageSize,
		MaxCacheSize:     m.maxCacheSize,
		ResidentBuffers:  len(m.byID),
		AvailableBuffers: m.available.Len(),
		NextPageID:       m.nextPageID,
		Stats:            m.stats,
	}
}

// Stats returns a copy of the current statistics counters.
func (m *Manager) Stats() Stats { return m.stats }

// ClearStats zeroes all statistics counters.
func (m *Manager) ClearStats() { m.stats = Stats{} }

// BufferCount returns the number of buffers currently resident in
// memory, in use or available.
func (m *Manager) BufferCount() int { return len(m.byID) }

// AvailableCount returns the number of buffers currently on the LRU list.
func (m *Manager) AvailableCount() int { return m.available.Len() }

// Dummy builds the manager-less sentinel buffer used as a container's
// end-iterator anchor. It is never registered in byID.
func Dummy() *Buffer {
	return &Buffer{pageID: DummyPageID}
}

// NewBuffer allocates a fresh page id, gives it a zeroed buffer, and
// returns a pinned handle to it (spec §4.D "allocates new pages").
func (m *Manager) NewBuffer() (Handle, error) {
	if m.readOnly {
		return Handle{}, errs.New(errs.KindReadOnlyViolation, "cache: cannot allocate a new page in a read-only manager")
	}
	m.stats.NewBufferRequests++

	id := m.nextPageID
	m.nextPageID++

	b := m.obtainSlot(id)
	b.useCount = 1
	b.manager = m
	m.byID[id] = b
	m.noteCheckout(id)
	return Handle{buf: b}, nil
}

// noteCheckout records an access with the optional LRU-K replacer and
// marks the page ineligible for eviction while handles are out.
func (m *Manager) noteCheckout(id uint32) {
	if m.replacer == nil {
		return
	}
	m.replacer.recordAccess(int(id))
	m.replacer.setEvictable(int(id), false)
}

// victim picks the buffer to evict next: the replacer's choice when
// LRU-K is active (falling back to strict order if it declines), else
// the front of the available list.
func (m *Manager) victim() *Buffer {
	if m.replacer != nil {
		if id, err := m.replacer.evict(); err == nil {
			if b, ok := m.byID[uint32(id)]; ok && b.availElem != nil {
				return b
			}
		}
	}
	return m.available.Front().Value.(*Buffer)
}

// Get returns a handle to page id, reading it from disk on a cache
// miss (spec §4.D steps 1-5). neverFree pins the buffer once loaded,
// per the "cache branches" option.
func (m *Manager) Get(id uint32, neverFree bool) (Handle, error) {
	if b, ok := m.byID[id]; ok {
		if neverFree && !b.neverFree {
			b.neverFree = true
		}
		switch {
		case b.neverFree:
			m.stats.NeverFreeBuffersRead++
		case b.availElem != nil:
			m.stats.AvailableBuffersRead++
		default:
			m.stats.ActiveBuffersRead++
		}
		if b.availElem != nil {
			m.available.Remove(b.availElem)
			b.availElem = nil
		}
		b.useCount++
		m.noteCheckout(id)
		return Handle{buf: b}, nil
	}

	b := m.obtainSlot(id)
	if _, err := m.file.Seek(int64(id)*int64(m.pageSize), diskio.Begin); err != nil {
		return Handle{}, err
	}
	res, err := m.file.Read(b.data)
	if err != nil {
		return Handle{}, err
	}
	if res.N < len(b.data) {
		return Handle{}, errs.Wrap(errs.KindInvalidPageID, m.file.Path(),
			fmt.Errorf("page %d beyond end of file", id))
	}
	m.stats.FileBuffersRead++

	b.useCount = 1
	b.neverFree = neverFree
	b.manager = m
	if neverFree {
		m.stats.NeverFreeHonored++
	}
	m.byID[id] = b
	m.noteCheckout(id)
	return Handle{buf: b}, nil
}

// obtainSlot returns a zeroed, unregistered buffer for page id,
// reusing the LRU available buffer's allocation (spec step 3) once the
// cache is at capacity, or allocating fresh memory otherwise.
func (m *Manager) obtainSlot(id uint32) *Buffer {
	if m.maxCacheSize >= 0 && int64(m.available.Len()) >= m.maxCacheSize && m.available.Len() > 0 {
		victim := m.victim()
		m.evictSlot(victim)
		victim.pageID = id
		victim.dirty = false
		victim.neverFree = false
		for i := range victim.data {
			victim.data[i] = 0
		}
		return victim
	}

	m.stats.BufferAllocs++
	return &Buffer{
		pageID: id,
		data:   make([]byte, m.pageSize),
	}
}

// evictSlot writes b back to disk if dirty and removes it from byID
// and the available list, freeing it for reuse by a new page id.
func (m *Manager) evictSlot(b *Buffer) {
	if b.dirty {
		m.writeBack(b)
	}
	delete(m.byID, b.pageID)
	if b.availElem != nil {
		m.available.Remove(b.availElem)
		b.availElem = nil
	}
	if m.replacer != nil {
		m.replacer.remove(int(b.pageID))
	}
}

func (m *Manager) writeBack(b *Buffer) error {
	if _, err := m.file.Seek(int64(b.pageID)*int64(m.pageSize), diskio.Begin); err != nil {
		return err
	}
	if err := m.file.Write(b.data); err != nil {
		return err
	}
	m.stats.FileBuffersWritten++
	b.dirty = false
	return nil
}

// onReleased runs the use-count-reaches-zero policy (spec §4.D "the
// critical path"): an orphaned buffer is dropped, a never_free buffer
// stays cached outside the LRU list, and otherwise the manager evicts
// the current LRU victim (if the cache is already at capacity) before
// parking the just-released buffer at the MRU end. Evicting another
// buffer first, rather than after, is what keeps the cache bounded at
// max_cache_size while still leaving room for the newly freed buffer.
func (m *Manager) onReleased(b *Buffer) {
	if b.manager == nil {
		delete(m.byID, b.pageID)
		return
	}
	if b.neverFree {
		m.stats.NeverFreeHonored++
		return
	}
	if m.maxCacheSize >= 0 && int64(m.available.Len()) >= m.maxCacheSize && m.available.Len() > 0 {
		m.evictSlot(m.victim())
	}
	b.availElem = m.available.PushBack(b)
	if m.replacer != nil {
		m.replacer.setEvictable(int(b.pageID), true)
	}
}

// Flush writes every dirty buffer currently in memory back to disk.
func (m *Manager) Flush() error {
	for _, b := range m.byID {
		if b.dirty {
			if err := m.writeBack(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearCache evicts every available (use-count zero, not never_free)
// buffer, writing back dirty ones. Buffers still in use, or pinned via
// never_free, are left untouched.
func (m *Manager) ClearCache() error {
	for e := m.available.Front(); e != nil; {
		next := e.Next()
		b := e.Value.(*Buffer)
		if b.dirty {
			if err := m.writeBack(b); err != nil {
				return err
			}
		}
		delete(m.byID, b.pageID)
		m.available.Remove(e)
		b.availElem = nil
		e = next
	}
	return nil
}

// Close flushes all dirty buffers and closes the underlying file. Any
// buffer whose handles are still outstanding is orphaned: it remains
// valid in the caller's hands but its eventual Release is a no-op.
func (m *Manager) Close() error {
	if err := m.Flush(); err != nil {
		return err
	}
	for _, b := range m.byID {
		b.manager = nil
	}
	m.byID = make(map[uint32]*Buffer)
	m.available.Init()
	return m.file.Close()
}

// PageSize is the page size this manager was opened with.
func (m *Manager) PageSize() uint32 { return m.pageSize }

// ReadOnly reports whether this manager refuses NewBuffer allocations.
func (m *Manager) ReadOnly() bool { return m.readOnly }

// NextPageID previews the id NewBuffer would hand out next, without
// allocating it.
func (m *Manager) NextPageID() uint32 { return m.nextPageID }
