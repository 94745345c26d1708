package btree

import "github.com/ngina-wtf/pagetree/pageio"

// eraseAt removes the record at (leaf, idx) and returns a cursor to
// whatever followed it in tree order (or End()). It takes ownership of
// leaf and path; both are released, directly or through the cascading
// erase, before returning.
func (t *Tree) eraseAt(leaf view, path []pathFrame, idx uint32) (Cursor, error) {
	t.okToPack = false
	t.header.ElementCount--
	leaf.markDirty()

	n := leaf.count()
	if n > 1 || len(path) == 0 {
		// Multi-element leaf, or the root leaf (allowed to go empty).
		leaf.removeLeafRecord(idx)
		leaf.setCount(n - 1)
		if idx < n-1 {
			return Cursor{t: t, leaf: leaf, idx: idx, path: path}, nil
		}
		next, p2, err := t.nextLeaf(leaf, path)
		if err != nil {
			return Cursor{}, err
		}
		if next.h.Buffer().IsDummy() || next.count() == 0 {
			return Cursor{t: t, leaf: next, path: p2}, nil
		}
		return Cursor{t: t, leaf: next, idx: 0, path: p2}, nil
	}

	// Single-element non-root leaf: the leaf is freed outright and its
	// reference erased from the parent chain (spec §4.H leaf erase step
	// 3). The prior leaf is located first — it is untouched by the
	// cascade, so stepping forward from it afterwards lands on whatever
	// leaf now logically follows the deleted position.
	leafID := leaf.h.Buffer().PageID()

	prior, priorPath, perr := t.priorLeaf(newView(leaf.h.Retain(), t.l), retainPath(path))
	havePrior := perr == nil
	if perr != nil && perr != ErrNoPrior {
		releasePath(path)
		leaf.h.Release()
		return Cursor{}, perr
	}
	if havePrior && leafID == t.header.LastNodeID {
		t.header.LastNodeID = prior.h.Buffer().PageID()
	}

	leaf.removeLeafRecord(0)
	leaf.setCount(0)
	t.freeNode(leaf)
	if err := t.collapseBranch(path); err != nil {
		if havePrior {
			prior.h.Release()
			releasePath(priorPath)
		}
		return Cursor{}, err
	}

	if !havePrior {
		// The leftmost leaf is gone; the new leftmost is both the new
		// first leaf and the erased position's successor.
		c, err := t.Begin()
		if err != nil {
			return Cursor{}, err
		}
		if !c.IsEnd() {
			t.header.FirstNodeID = c.leaf.h.Buffer().PageID()
		}
		return c, nil
	}
	succ, sp, err := t.nextLeaf(prior, priorPath)
	if err != nil {
		return Cursor{}, err
	}
	if succ.h.Buffer().IsDummy() || succ.count() == 0 {
		return Cursor{t: t, leaf: succ, path: sp}, nil
	}
	return Cursor{t: t, leaf: succ, idx: 0, path: sp}, nil
}

// collapseBranch removes, from the branch at the bottom of path, the
// child reference that was followed to reach a just-freed node, per
// spec §4.H's branch-value erase. A branch already down to its end
// pseudo-element alone cascades: its own parent reference is erased and
// the branch freed. Only the root is spliced out when it becomes
// keyless; interior branches are left under-full by design (rebalancing
// by borrow/merge is not performed).
func (t *Tree) collapseBranch(path []pathFrame) error {
	top := path[len(path)-1]
	rest := path[:len(path)-1]
	b := top.node
	p := top.slot
	n := b.count()
	b.markDirty()

	if n == 0 {
		// The sole pseudo-element child is being removed: the sub-tree
		// rooted at b is now empty, so b's own parent reference goes too.
		if len(rest) == 0 {
			// Keyless root losing its only child. A consistent tree never
			// reaches this (root demotion below runs first); reset to an
			// empty root leaf rather than leave a dangling root id.
			b.setLevel(pageio.LeafLevel)
			b.setCount(0)
			t.header.RootLevel = 0
			b.h.Release()
			return nil
		}
		if err := t.collapseBranch(rest); err != nil {
			b.h.Release()
			return err
		}
		t.freeNode(b)
		return nil
	}

	es := b.l.branchEntrySize()
	base := uint32(pageio.NodePrologueSize)
	if p < n {
		b.removeBranchEntry(p)
		b.setCount(n - 1)
	} else {
		// Pseudo-element removal: key n-1 disappears and the child that
		// was its left bound becomes the new trailing end-child, written
		// into the compact slot for the shrunken count.
		last := b.branchChild(n - 1)
		clearBytes(b.buf()[base+(n-1)*es : base+n*es+4])
		b.setCount(n - 1)
		b.setBranchChild(n-1, last)
	}

	if n-1 > 0 || len(rest) != 0 {
		releasePath(rest)
		b.h.Release()
		return nil
	}

	// Root demotion (spec §4.H step 3): the root holds only its end
	// pseudo-element, so its sole child takes over; repeat while the new
	// root also qualifies.
	for {
		soleChild := b.branchChild(0)
		level := b.level()
		t.header.RootNodeID = soleChild
		t.header.RootLevel = level - 1
		t.freeNode(b)
		if t.header.RootLevel == 0 {
			return nil
		}
		nb, err := t.getNode(soleChild)
		if err != nil {
			return err
		}
		if nb.count() > 0 {
			nb.h.Release()
			return nil
		}
		b = nb
	}
}

// EraseCursor removes the element c currently points to and returns a
// cursor to its successor (or End()). c is consumed.
func (t *Tree) EraseCursor(c Cursor) (Cursor, error) {
	if err := t.requireWritable(); err != nil {
		c.Release()
		return Cursor{}, err
	}
	if c.IsEnd() {
		c.Release()
		return t.End(), nil
	}
	return t.eraseAt(c.leaf, c.path, c.idx)
}

// EraseKey removes every element comparing equal to k (spec §4.H
// "erase by key"), returning the number removed (0 or 1 for unique
// containers, any count for multi containers).
func (t *Tree) EraseKey(k []byte) (uint64, error) {
	if err := t.requireWritable(); err != nil {
		return 0, err
	}
	c, err := t.LowerBound(k)
	if err != nil {
		return 0, err
	}
	var n uint64
	for !c.IsEnd() && t.compare(c.Key(), k) == 0 {
		n++
		next, err := t.eraseAt(c.leaf, c.path, c.idx)
		if err != nil {
			return n, err
		}
		c = next
	}
	c.Release()
	return n, nil
}

// EraseRange removes every element in [first, last) (spec §4.H "erase
// range"), returning the number removed. Both cursors are consumed.
// The half-open distance is counted before anything is mutated; the
// erase loop then follows each single-element erase's successor cursor
// that many times, which stays correct across leaf frees and duplicate
// keys where re-finding last by key would not.
func (t *Tree) EraseRange(first, last Cursor) (uint64, error) {
	if err := t.requireWritable(); err != nil {
		first.Release()
		last.Release()
		return 0, err
	}
	var n uint64
	walk := first.clone()
	for !walk.IsEnd() && !walk.SamePosition(last) {
		n++
		next, err := walk.Next()
		walk.Release()
		if err != nil {
			first.Release()
			last.Release()
			return 0, err
		}
		walk = next
	}
	walk.Release()
	last.Release()

	c := first
	var erased uint64
	for ; erased < n; erased++ {
		next, err := t.eraseAt(c.leaf, c.path, c.idx)
		if err != nil {
			return erased, err
		}
		c = next
	}
	c.Release()
	return erased, nil
}

// Clear erases every element one by one, keeping the container open;
// freed nodes go to the free list for reuse rather than shrinking the
// file.
func (t *Tree) Clear() error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	c, err := t.Begin()
	if err != nil {
		return err
	}
	for !c.IsEnd() {
		next, err := t.eraseAt(c.leaf, c.path, c.idx)
		if err != nil {
			return err
		}
		c = next
	}
	c.Release()
	return nil
}
