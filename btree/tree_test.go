package btree

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/ngina-wtf/pagetree/cache"
	"github.com/ngina-wtf/pagetree/diskio"
	"github.com/ngina-wtf/pagetree/pageio"
)

// testPageSize is kept small on purpose: a handful of records per leaf
// and per branch forces split/merge paths on every test with more than
// a few elements.
const testPageSize = 128

func compareBytes(a, b []byte) int { return bytes.Compare(a, b) }

func openTestTree(t *testing.T, unique bool, mappedSize uint32) *Tree {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data")

	f, err := diskio.Open(path, diskio.In|diskio.Out|diskio.Truncate)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}

	header := pageio.NewHeader(pageio.LittleEndian, testPageSize, 8, mappedSize, "test", 1,
		pageio.Kind{Unique: unique, KeyOnly: mappedSize == 0})

	mgr := cache.Open(f, testPageSize, 0, -1, false)
	if err := InitNewFile(mgr, header); err != nil {
		t.Fatalf("init new file: %v", err)
	}

	tr, err := Open(mgr, header, compareBytes, false, false)
	if err != nil {
		t.Fatalf("open tree: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func keyRecord(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func collectKeys(t *testing.T, tr *Tree) []int {
	t.Helper()
	var got []int
	c, err := tr.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for !c.IsEnd() {
		got = append(got, int(binary.BigEndian.Uint64(c.Key())))
		next, err := c.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		c.Release()
		c = next
	}
	c.Release()
	return got
}

func Test_InsertUniqueAscendingThenScanIsSorted(t *testing.T) {
	tr := openTestTree(t, true, 0)

	const n = 200
	for i := 0; i < n; i++ {
		if _, ok, err := tr.InsertUnique(keyRecord(i)); err != nil || !ok {
			t.Fatalf("insert %d: ok=%v err=%v", i, ok, err)
		}
	}
	if tr.Size() != n {
		t.Fatalf("expected size %d, got %d", n, tr.Size())
	}

	got := collectKeys(t, tr)
	if len(got) != n {
		t.Fatalf("expected %d keys from scan, got %d", n, len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("scan out of order at position %d: got %d", i, v)
		}
	}
}

func Test_InsertUniqueDescendingThenScanIsSorted(t *testing.T) {
	tr := openTestTree(t, true, 0)

	const n = 150
	for i := n - 1; i >= 0; i-- {
		if _, ok, err := tr.InsertUnique(keyRecord(i)); err != nil || !ok {
			t.Fatalf("insert %d: ok=%v err=%v", i, ok, err)
		}
	}

	got := collectKeys(t, tr)
	for i, v := range got {
		if v != i {
			t.Fatalf("scan out of order at position %d: got %d", i, v)
		}
	}
}

func Test_InsertUniqueRejectsDuplicateKey(t *testing.T) {
	tr := openTestTree(t, true, 0)

	if _, ok, err := tr.InsertUnique(keyRecord(5)); err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	if _, ok, err := tr.InsertUnique(keyRecord(5)); err != nil || ok {
		t.Fatalf("duplicate insert should report ok=false, got ok=%v err=%v", ok, err)
	}
	if tr.Size() != 1 {
		t.Fatalf("duplicate insert must not change size, got %d", tr.Size())
	}
}

func Test_InsertMultiKeepsAllDuplicates(t *testing.T) {
	tr := openTestTree(t, false, 0)

	for i := 0; i < 5; i++ {
		if _, err := tr.InsertMulti(keyRecord(7)); err != nil {
			t.Fatalf("insert dup %d: %v", i, err)
		}
	}
	n, err := tr.Count(keyRecord(7))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 duplicates, got %d", n)
	}
}

func Test_FindLocatesInsertedKeysAndMissesOthers(t *testing.T) {
	tr := openTestTree(t, true, 0)

	for _, k := range []int{10, 20, 30, 5, 15} {
		if _, _, err := tr.InsertUnique(keyRecord(k)); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	c, err := tr.Find(keyRecord(20))
	if err != nil || c.IsEnd() {
		t.Fatalf("expected to find 20, err=%v end=%v", err, c.IsEnd())
	}
	c.Release()

	c, err = tr.Find(keyRecord(99))
	if err != nil || !c.IsEnd() {
		t.Fatalf("expected miss for 99, err=%v end=%v", err, c.IsEnd())
	}
	c.Release()
}

func Test_EraseKeyRemovesElementAndKeepsOrdering(t *testing.T) {
	tr := openTestTree(t, true, 0)

	const n = 120
	for i := 0; i < n; i++ {
		if _, _, err := tr.InsertUnique(keyRecord(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := 0; i < n; i += 2 {
		count, err := tr.EraseKey(keyRecord(i))
		if err != nil {
			t.Fatalf("erase %d: %v", i, err)
		}
		if count != 1 {
			t.Fatalf("expected to erase exactly one record for key %d, got %d", i, count)
		}
	}
	if tr.Size() != n/2 {
		t.Fatalf("expected %d elements remaining, got %d", n/2, tr.Size())
	}

	got := collectKeys(t, tr)
	if len(got) != n/2 {
		t.Fatalf("scan count mismatch: %d", len(got))
	}
	for i, v := range got {
		want := 2*i + 1
		if v != want {
			t.Fatalf("position %d: want %d got %d", i, want, v)
		}
	}

	if count, err := tr.EraseKey(keyRecord(0)); err != nil || count != 0 {
		t.Fatalf("erasing an already-removed key should report 0, got count=%d err=%v", count, err)
	}
}

func Test_EraseAllLeavesEmptyTree(t *testing.T) {
	tr := openTestTree(t, true, 0)

	const n = 80
	for i := 0; i < n; i++ {
		if _, _, err := tr.InsertUnique(keyRecord(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		if _, err := tr.EraseKey(keyRecord(i)); err != nil {
			t.Fatalf("erase %d: %v", i, err)
		}
	}
	if !tr.Empty() {
		t.Fatalf("expected empty tree, size=%d", tr.Size())
	}
	if tr.header.RootLevel != pageio.LeafLevel {
		t.Fatalf("expected root to have collapsed back to a leaf, level=%d", tr.header.RootLevel)
	}

	c, err := tr.Begin()
	if err != nil {
		t.Fatalf("begin on empty tree: %v", err)
	}
	if !c.IsEnd() {
		t.Fatalf("expected begin() == end() on an empty tree")
	}
	c.Release()
}

func Test_EraseRangeRemovesHalfOpenInterval(t *testing.T) {
	tr := openTestTree(t, true, 0)

	const n = 100
	for i := 0; i < n; i++ {
		if _, _, err := tr.InsertUnique(keyRecord(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	first, err := tr.LowerBound(keyRecord(20))
	if err != nil {
		t.Fatalf("lower bound: %v", err)
	}
	last, err := tr.LowerBound(keyRecord(60))
	if err != nil {
		t.Fatalf("lower bound: %v", err)
	}
	count, err := tr.EraseRange(first, last)
	if err != nil {
		t.Fatalf("erase range: %v", err)
	}
	if count != 40 {
		t.Fatalf("expected 40 erased, got %d", count)
	}

	got := collectKeys(t, tr)
	for _, v := range got {
		if v >= 20 && v < 60 {
			t.Fatalf("key %d should have been erased by the range", v)
		}
	}
	if len(got) != n-40 {
		t.Fatalf("expected %d survivors, got %d", n-40, len(got))
	}
}

func Test_InsertAndEraseMixedPreservesOrderAndCount(t *testing.T) {
	tr := openTestTree(t, true, 0)

	present := make(map[int]bool)
	ops := []struct {
		insert bool
		key    int
	}{
		{true, 50}, {true, 10}, {true, 90}, {true, 30}, {true, 70},
		{false, 10}, {true, 5}, {true, 95}, {false, 90}, {true, 20},
		{true, 40}, {true, 60}, {true, 80}, {false, 50}, {true, 100},
	}
	for _, op := range ops {
		if op.insert {
			_, ok, err := tr.InsertUnique(keyRecord(op.key))
			if err != nil {
				t.Fatalf("insert %d: %v", op.key, err)
			}
			if ok {
				present[op.key] = true
			}
		} else {
			_, err := tr.EraseKey(keyRecord(op.key))
			if err != nil {
				t.Fatalf("erase %d: %v", op.key, err)
			}
			delete(present, op.key)
		}
	}

	got := collectKeys(t, tr)
	if len(got) != len(present) {
		t.Fatalf("expected %d survivors, got %d (%v)", len(present), len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("scan not strictly increasing at %d: %v", i, got)
		}
	}
	for _, v := range got {
		if !present[v] {
			t.Fatalf("unexpected survivor %d", v)
		}
	}
}

func Test_MapRecordsCarryMappedBytes(t *testing.T) {
	tr := openTestTree(t, true, 8)

	record := func(k, v int) []byte {
		buf := make([]byte, 16)
		binary.BigEndian.PutUint64(buf[:8], uint64(k))
		binary.BigEndian.PutUint64(buf[8:], uint64(v))
		return buf
	}

	for i := 0; i < 50; i++ {
		if _, _, err := tr.InsertUnique(record(i, i*10)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	c, err := tr.Find(keyRecord(25))
	if err != nil || c.IsEnd() {
		t.Fatalf("find 25: err=%v end=%v", err, c.IsEnd())
	}
	got := binary.BigEndian.Uint64(c.Record()[8:])
	if got != 250 {
		t.Fatalf("expected mapped value 250, got %d", got)
	}
	c.Release()
}

func Test_PackOptimizationHandlesLargeAscendingRun(t *testing.T) {
	tr := openTestTree(t, true, 0)

	const n = 1000
	for i := 0; i < n; i++ {
		if _, ok, err := tr.InsertUnique(keyRecord(i)); err != nil || !ok {
			t.Fatalf("insert %d: ok=%v err=%v", i, ok, err)
		}
	}
	if tr.Size() != n {
		t.Fatalf("expected %d elements, got %d", n, tr.Size())
	}
	got := collectKeys(t, tr)
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d: want %d got %d", i, i, v)
		}
	}
}
