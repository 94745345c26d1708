package cache

import (
	"fmt"
	"testing"
)

func Test_LruKRecordAndEvict(t *testing.T) {
	// Add six frames to the replacer, set the first five
	// as evictable and leave the 6th non-evictable

	lruK := NewLruKReplacer(2, 7)
	lruK.recordAccess(1)
	lruK.recordAccess(2)
	lruK.recordAccess(3)
	lruK.recordAccess(4)
	lruK.recordAccess(5)
	lruK.recordAccess(6)

	assertEqual(t, 0, lruK.size,
		"size of replacer is currently 0 since none of the frames have been set to evictable")
	lruK.setEvictable(1, true)
	lruK.setEvictable(2, true)
	lruK.setEvictable(3, true)
	lruK.setEvictable(4, true)
	lruK.setEvictable(5, true)
	lruK.setEvictable(6, false)

	assertEqual(t, 5, lruK.size,
		"size of replacer is the number of frames that can be evicted, not the total of frames tracked")

	// Record another access for frame 1. Now frame 1 has two accesses total.
	// All other frames now share an infinite backward k-distance since they
	// have fewer than k accesses; ties break on first-seen order, so the
	// eviction order should be [2, 3, 4, 5, 1].
	lruK.recordAccess(1)
	assertEqual(t, 2, len(lruK.metadataStore[1].history), fmt.Sprintf("history %+v", lruK.metadataStore[1].history))

	fid, err := lruK.evict()
	assertEqual(t, 2, fid, getErrMessage(err))
	fid, err = lruK.evict()
	assertEqual(t, 3, fid, getErrMessage(err))
	fid, err = lruK.evict()
	assertEqual(t, 4, fid, getErrMessage(err))

	// Now the replacer has the frames [5, 1].
	assertEqual(t, 2, lruK.size, "")
}

func Test_LruKEvictEmptyReportsError(t *testing.T) {
	lruK := NewLruKReplacer(2, 4)
	if _, err := lruK.evict(); err != ErrNoEvictableFrame {
		t.Fatalf("expected ErrNoEvictableFrame, got %v", err)
	}
}

func Test_LruKRemoveDropsTracking(t *testing.T) {
	lruK := NewLruKReplacer(2, 4)
	lruK.recordAccess(1)
	lruK.setEvictable(1, true)
	lruK.remove(1)
	assertEqual(t, 0, lruK.size, "removing the only evictable frame should zero the size")
	if _, err := lruK.evict(); err != ErrNoEvictableFrame {
		t.Fatalf("expected ErrNoEvictableFrame after removal, got %v", err)
	}
}

func assertEqual[T comparable](t *testing.T, expected T, actual T, msg string) {
	t.Helper()
	if expected == actual {
		return
	}
	if msg != "" {
		t.Errorf("expected (%+v) is not equal to actual (%+v): (%v)", expected, actual, msg)
	} else {
		t.Errorf("expected (%+v) is not equal to actual (%+v)", expected, actual)
	}
}

func getErrMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
