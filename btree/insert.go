package btree

import "github.com/ngina-wtf/pagetree/pageio"

// InsertUnique inserts record (key bytes followed by mapped bytes, if
// any) if no element with the same key is already present, per spec
// §4.G's unique insert: locate with the special lower-bound search, and
// if the located position's key already equals the probe, report
// failure without mutating the tree.
func (t *Tree) InsertUnique(record []byte) (Cursor, bool, error) {
	if err := t.requireWritable(); err != nil {
		return Cursor{}, false, err
	}
	key := record[:t.l.keySize]
	probe := t.probeFor(key)

	leaf, path, err := t.descendSpecialLowerBound(probe)
	if err != nil {
		return Cursor{}, false, err
	}
	idx := leafLowerBound(leaf, probe)
	if idx < leaf.count() && t.compare(leaf.leafKey(idx), key) == 0 {
		releasePath(path)
		leaf.h.Release()
		c, err := t.Find(key)
		return c, false, err
	}

	if err := t.leafInsert(leaf, path, idx, record); err != nil {
		return Cursor{}, false, err
	}
	c, err := t.Find(key)
	return c, true, err
}

// InsertMulti inserts record unconditionally, placing it after any
// existing elements with an equal key per spec §4.G's non-unique insert
// (locates with the special upper-bound search).
func (t *Tree) InsertMulti(record []byte) (Cursor, error) {
	if err := t.requireWritable(); err != nil {
		return Cursor{}, err
	}
	key := record[:t.l.keySize]
	probe := t.probeFor(key)

	leaf, path, err := t.descendSpecialUpperBound(probe)
	if err != nil {
		return Cursor{}, err
	}
	idx := leafUpperBound(leaf, probe)

	if err := t.leafInsert(leaf, path, idx, record); err != nil {
		return Cursor{}, err
	}
	hi, err := t.UpperBound(key)
	if err != nil {
		return Cursor{}, err
	}
	return hi.Prev()
}

// leafInsert implements spec §4.G's leaf insert algorithm: insert in
// place if room remains, else split (applying the pack optimization
// fast path when its preconditions still hold) and cascade a branch
// insert into the parent chain.
func (t *Tree) leafInsert(leaf view, path []pathFrame, idx uint32, record []byte) error {
	t.header.ElementCount++
	leaf.markDirty()

	if leaf.count() < leaf.leafCapacity() {
		leaf.insertLeafRecord(idx, record)
		leaf.setCount(leaf.count() + 1)
		releasePath(path)
		leaf.h.Release()
		return nil
	}

	leafID := leaf.h.Buffer().PageID()
	isRoot := len(path) == 0
	wasLast := leafID == t.header.LastNodeID
	atEnd := idx == leaf.count()

	if t.okToPack && (!atEnd || !wasLast) {
		t.okToPack = false
	}

	l2, err := t.allocNode(pageio.LeafLevel)
	if err != nil {
		releasePath(path)
		leaf.h.Release()
		return err
	}

	if wasLast {
		t.header.LastNodeID = l2.h.Buffer().PageID()
	}

	if t.okToPack {
		l2.insertLeafRecord(0, record)
		l2.setCount(1)
		firstKey := append([]byte(nil), l2.leafKey(0)...)
		newChildID := l2.h.Buffer().PageID()
		l2.h.Release()
		leaf.h.Release()
		if isRoot {
			path, err = t.promoteRoot(leafID, pageio.LeafLevel)
			if err != nil {
				return err
			}
		}
		return t.insertIntoParent(path, firstKey, newChildID)
	}

	n := leaf.count()
	splitSz := n / 2
	moveFrom := n - splitSz
	for i := uint32(0); i < splitSz; i++ {
		copy(l2.leafRecord(i), leaf.leafRecord(moveFrom+i))
	}
	l2.setCount(splitSz)
	for i := moveFrom; i < n; i++ {
		clearBytes(leaf.leafRecord(i))
	}
	leaf.setCount(moveFrom)

	target := leaf
	targetIdx := idx
	if idx >= moveFrom {
		target = l2
		targetIdx = idx - moveFrom
	}
	target.insertLeafRecord(targetIdx, record)
	target.setCount(target.count() + 1)

	firstKey := append([]byte(nil), l2.leafKey(0)...)
	newChildID := l2.h.Buffer().PageID()
	l2.h.Release()
	leaf.h.Release()

	if isRoot {
		path, err = t.promoteRoot(leafID, pageio.LeafLevel)
		if err != nil {
			return err
		}
	}
	return t.insertIntoParent(path, firstKey, newChildID)
}

// promoteRoot creates a new root one level above the node that just
// split (spec §4.G "new root creation"), and returns the single-frame
// path that makes the old root look like an ordinary child of the new
// one, so the generic insertIntoParent logic can proceed unchanged.
func (t *Tree) promoteRoot(oldRootID uint32, oldRootLevel uint8) ([]pathFrame, error) {
	nr, err := t.allocNode(oldRootLevel + 1)
	if err != nil {
		return nil, err
	}
	nr.setBranchChild(0, oldRootID)
	nr.markDirty()

	t.header.RootNodeID = nr.h.Buffer().PageID()
	t.header.RootLevel = oldRootLevel + 1

	if want := int64(t.header.RootLevel) + 1; t.mgr.MaxCacheSize() >= 0 && t.mgr.MaxCacheSize() < want {
		t.mgr.SetMaxCacheSize(want)
	}

	return []pathFrame{{node: nr, slot: 0}}, nil
}

// insertIntoParent links a freshly split child (key, newChildID) into
// the branch at the bottom of path (spec §4.G "branch insert
// algorithm"), splitting that branch (and cascading further up,
// creating a new root if necessary) if it has no room.
func (t *Tree) insertIntoParent(path []pathFrame, key []byte, newChildID uint32) error {
	top := path[len(path)-1]
	rest := path[:len(path)-1]
	return t.branchInsert(top.node, top.slot, rest, key, newChildID)
}

// branchInsert inserts (key, newChildID) into b at slot, so that the
// existing child at slot is retained (now bounded above by the tighter
// key) and newChildID becomes its right neighbor, per spec §4.G. rest
// is the remaining ancestor path above b (possibly empty, meaning b is
// currently the root).
func (t *Tree) branchInsert(b view, slot uint32, rest []pathFrame, key []byte, newChildID uint32) error {
	b.markDirty()

	if b.count() < b.branchCapacity() {
		b.insertBranchEntry(slot, key, newChildID)
		b.setCount(b.count() + 1)
		releasePath(rest)
		b.h.Release()
		return nil
	}

	bID := b.h.Buffer().PageID()
	bLevel := b.level()
	isRoot := len(rest) == 0

	b2, err := t.allocNode(bLevel)
	if err != nil {
		releasePath(rest)
		b.h.Release()
		return err
	}

	if t.okToPack {
		b2.setBranchChild(0, newChildID)
		b2.markDirty()
		newB2ID := b2.h.Buffer().PageID()
		b2.h.Release()
		b.h.Release()
		if isRoot {
			rest, err = t.promoteRoot(bID, bLevel)
			if err != nil {
				return err
			}
		}
		return t.insertIntoParent(rest, key, newB2ID)
	}

	n := b.count()
	splitSz := n / 2
	medianIdx := n - splitSz - 1

	// b2's count is set before its children so the trailing end-child
	// write lands in the compact slot for that count.
	b2.setCount(splitSz)
	for i := uint32(0); i < splitSz; i++ {
		b2.setBranchKey(i, b.branchKey(medianIdx+1+i))
		b2.setBranchChild(i, b.branchChild(medianIdx+1+i))
	}
	b2.setBranchChild(splitSz, b.branchChild(n))
	b2.markDirty()

	// The median key is promoted; its child becomes b's trailing
	// end-pseudo-child at the shrunken count.
	promotedKey := append([]byte(nil), b.branchKey(medianIdx)...)
	newTrailing := b.branchChild(medianIdx)
	es := b.l.branchEntrySize()
	base := uint32(pageio.NodePrologueSize)
	clearBytes(b.buf()[base+medianIdx*es : base+n*es+4])
	b.setCount(medianIdx)
	b.setBranchChild(medianIdx, newTrailing)

	// Insert (key, newChildID) into whichever half the original slot
	// landed in, while both halves are still pinned. Releasing either
	// half before this write would let the cascading parent insert below
	// evict it out from under us.
	if slot <= medianIdx {
		b.insertBranchEntry(slot, key, newChildID)
		b.setCount(b.count() + 1)
	} else {
		ts := slot - (medianIdx + 1)
		b2.insertBranchEntry(ts, key, newChildID)
		b2.setCount(b2.count() + 1)
	}

	b2ID := b2.h.Buffer().PageID()
	b2.h.Release()
	b.h.Release()

	if isRoot {
		rest, err = t.promoteRoot(bID, bLevel)
		if err != nil {
			return err
		}
	}
	return t.insertIntoParent(rest, promotedKey, b2ID)
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
