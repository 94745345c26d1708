package cache

import (
	"path/filepath"
	"testing"

	"github.com/ngina-wtf/pagetree/diskio"
)

const testPageSize = 128

func openTestManager(t *testing.T, maxCacheSize int64) *Manager {
	t.Helper()
	dir := t.TempDir()
	f, err := diskio.Open(filepath.Join(dir, "data"), diskio.In|diskio.Out|diskio.Truncate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := Open(f, testPageSize, 0, maxCacheSize, false)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func Test_NewBufferThenGetIsAvailableHit(t *testing.T) {
	m := openTestManager(t, -1)

	h, err := m.NewBuffer()
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	id := h.Buffer().PageID()
	copy(h.Buffer().Data(), []byte("hello"))
	h.Buffer().MarkDirty()
	h.Release()

	h2, err := m.Get(id, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(h2.Buffer().Data()[:5]) != "hello" {
		t.Fatalf("expected written bytes to be visible through cache, got %q", h2.Buffer().Data()[:5])
	}
	h2.Release()

	if m.Stats().AvailableBuffersRead != 1 {
		t.Fatalf("expected the second Get to pull from the available list, stats=%+v", m.Stats())
	}
}

func Test_ReleaseParksOnAvailableList(t *testing.T) {
	m := openTestManager(t, -1)

	h, _ := m.NewBuffer()
	if m.AvailableCount() != 0 {
		t.Fatalf("buffer still held should not be available")
	}
	h.Release()
	if m.AvailableCount() != 1 {
		t.Fatalf("released buffer should be on the available list, got count=%d", m.AvailableCount())
	}
	if m.BufferCount() != 1 {
		t.Fatalf("released buffer should still be registered by id, got count=%d", m.BufferCount())
	}
}

func Test_EvictionWritesBackDirtyPages(t *testing.T) {
	m := openTestManager(t, 1)

	h1, _ := m.NewBuffer()
	id1 := h1.Buffer().PageID()
	copy(h1.Buffer().Data(), []byte("first"))
	h1.Buffer().MarkDirty()
	h1.Release()

	h2, _ := m.NewBuffer()
	copy(h2.Buffer().Data(), []byte("second"))
	h2.Buffer().MarkDirty()
	h2.Release()

	if m.BufferCount() != 1 {
		t.Fatalf("max_cache_size=1 should have evicted the first buffer, got count=%d", m.BufferCount())
	}
	if m.Stats().FileBuffersWritten == 0 {
		t.Fatalf("expected the dirty evicted buffer to be written back")
	}

	h3, err := m.Get(id1, false)
	if err != nil {
		t.Fatalf("re-reading evicted page: %v", err)
	}
	if string(h3.Buffer().Data()[:5]) != "first" {
		t.Fatalf("expected evicted page contents to survive the write-back, got %q", h3.Buffer().Data()[:5])
	}
	h3.Release()
}

func Test_NeverFreeBufferNeverJoinsAvailableList(t *testing.T) {
	m := openTestManager(t, -1)

	h, _ := m.NewBuffer()
	id := h.Buffer().PageID()
	h.Release()

	pinned, err := m.Get(id, true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	pinned.Release()

	if m.AvailableCount() != 0 {
		t.Fatalf("never_free buffer should not be parked on the available list, count=%d", m.AvailableCount())
	}
	if m.BufferCount() != 1 {
		t.Fatalf("never_free buffer should remain cached, count=%d", m.BufferCount())
	}
}

func Test_FlushWritesAllDirtyBuffersWithoutEvicting(t *testing.T) {
	m := openTestManager(t, -1)

	h, _ := m.NewBuffer()
	copy(h.Buffer().Data(), []byte("dirty"))
	h.Buffer().MarkDirty()

	if err := m.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if m.Stats().FileBuffersWritten != 1 {
		t.Fatalf("expected one write during flush, stats=%+v", m.Stats())
	}
	if h.Buffer().Dirty() {
		t.Fatalf("flush should clear the dirty flag")
	}
	h.Release()
}

func Test_ClearCacheOnlyTouchesAvailableBuffers(t *testing.T) {
	m := openTestManager(t, -1)

	pinned, _ := m.NewBuffer()
	released, _ := m.NewBuffer()
	released.Release()

	if err := m.ClearCache(); err != nil {
		t.Fatalf("clear cache: %v", err)
	}
	if m.AvailableCount() != 0 {
		t.Fatalf("clear cache should empty the available list")
	}
	if m.BufferCount() != 1 {
		t.Fatalf("clear cache should not touch buffers still in use, count=%d", m.BufferCount())
	}
	pinned.Release()
}

func Test_ReadOnlyManagerRejectsNewBuffer(t *testing.T) {
	dir := t.TempDir()
	f, err := diskio.Open(filepath.Join(dir, "data"), diskio.In|diskio.Out|diskio.Truncate)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	m := Open(f, testPageSize, 0, -1, true)
	defer m.Close()

	if _, err := m.NewBuffer(); err == nil {
		t.Fatal("expected read-only manager to reject NewBuffer")
	}
}

func Test_LruKEvictsPageWithFewerRecordedAccesses(t *testing.T) {
	m := openTestManager(t, 2)
	m.UseLruK(2)

	a, _ := m.NewBuffer()
	idA := a.Buffer().PageID()
	a.Release()
	b, _ := m.NewBuffer()
	b.Release()

	// A gets a second access; B keeps one, leaving it at infinite
	// backward k-distance and first in line for eviction.
	h, err := m.Get(idA, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	h.Release()

	c, _ := m.NewBuffer() // at capacity: the replacer should sacrifice B
	c.Release()

	if m.BufferCount() != 2 {
		t.Fatalf("expected two resident buffers, got %d", m.BufferCount())
	}
	before := m.Stats().FileBuffersRead
	h2, err := m.Get(idA, false)
	if err != nil {
		t.Fatalf("get A: %v", err)
	}
	h2.Release()
	if m.Stats().FileBuffersRead != before {
		t.Fatalf("expected A to survive LRU-K eviction and hit the cache")
	}
}

func Test_GetBeyondFileEndReportsInvalidPageID(t *testing.T) {
	m := openTestManager(t, -1)

	if _, err := m.Get(42, false); err == nil {
		t.Fatal("expected reading a page past end of file to fail")
	}
}

func Test_SnapshotReflectsCacheShape(t *testing.T) {
	m := openTestManager(t, -1)

	h, _ := m.NewBuffer()
	h2, _ := m.NewBuffer()
	h2.Release()

	snap := m.TakeSnapshot()
	if snap.PageSize != testPageSize {
		t.Fatalf("page size: got %d", snap.PageSize)
	}
	if snap.ResidentBuffers != 2 || snap.AvailableBuffers != 1 {
		t.Fatalf("shape: resident=%d available=%d", snap.ResidentBuffers, snap.AvailableBuffers)
	}
	h.Release()
}

func Test_CloseOrphansOutstandingHandles(t *testing.T) {
	m := openTestManager(t, -1)
	h, _ := m.NewBuffer()

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Releasing a handle whose manager has closed must not panic or
	// touch freed state.
	h.Release()
}
