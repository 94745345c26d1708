package btree

// Probe reports the ordering of a stored key against an implicit search
// target: negative when the key sorts before the target, zero when they
// compare equal, positive when the key sorts after it. Lookups driven by
// a Probe accept any target type the caller knows how to compare against
// stored keys, which is how heterogeneous lookup reaches the engine
// without the engine knowing the caller's types.
type Probe func(key []byte) int

func (t *Tree) probeFor(k []byte) Probe {
	return func(key []byte) int { return t.compare(key, k) }
}

// branchLowerBound returns the smallest index i in [0, v.count()) such
// that probe(v.branchKey(i)) >= 0, or v.count() if no such index exists
// (spec §4.F: "perform std::lower_bound on the branch's key array
// against k").
func branchLowerBound(v view, probe Probe) uint32 {
	lo, hi := uint32(0), v.count()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if probe(v.branchKey(mid)) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// branchUpperBound returns the smallest index i in [0, v.count()) such
// that probe(v.branchKey(i)) > 0, or v.count() if none.
func branchUpperBound(v view, probe Probe) uint32 {
	lo, hi := uint32(0), v.count()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if probe(v.branchKey(mid)) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// leafLowerBound returns the smallest index i in [0, v.count()) such
// that probe(v.leafKey(i)) >= 0, or v.count() if none.
func leafLowerBound(v view, probe Probe) uint32 {
	lo, hi := uint32(0), v.count()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if probe(v.leafKey(mid)) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// leafUpperBound returns the smallest index i in [0, v.count()) such
// that probe(v.leafKey(i)) > 0, or v.count() if none.
func leafUpperBound(v view, probe Probe) uint32 {
	lo, hi := uint32(0), v.count()
	for lo < hi {
		mid := lo + (hi-lo)/2
		if probe(v.leafKey(mid)) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// descendSpecialLowerBound walks root to leaf the way spec §4.F's
// m_special_lower_bound does: at each branch, lower_bound over the
// keys, stepping one slot right for unique containers when the probe
// matches the slot's key exactly (the key at that slot belongs to the
// right sub-tree per the unique branch invariant, §3.2.1). The path
// built along the way is returned so callers can drive an insert or
// erase from the leaf back up without re-searching.
func (t *Tree) descendSpecialLowerBound(probe Probe) (view, []pathFrame, error) {
	var path []pathFrame
	id := t.header.RootNodeID
	for {
		v, err := t.getNode(id)
		if err != nil {
			releasePath(path)
			return view{}, nil, err
		}
		if v.isLeaf() {
			return v, path, nil
		}
		slot := branchLowerBound(v, probe)
		if t.unique && slot < v.count() && probe(v.branchKey(slot)) == 0 {
			slot++
		}
		path = append(path, pathFrame{node: v, slot: slot})
		id = v.branchChild(slot)
	}
}

// descendSpecialUpperBound is descendSpecialLowerBound's counterpart
// for non-unique inserts (spec §4.G "non-unique insert... locates with
// m_special_upper_bound so that equal keys are inserted after existing
// duplicates").
func (t *Tree) descendSpecialUpperBound(probe Probe) (view, []pathFrame, error) {
	var path []pathFrame
	id := t.header.RootNodeID
	for {
		v, err := t.getNode(id)
		if err != nil {
			releasePath(path)
			return view{}, nil, err
		}
		if v.isLeaf() {
			return v, path, nil
		}
		slot := branchUpperBound(v, probe)
		path = append(path, pathFrame{node: v, slot: slot})
		id = v.branchChild(slot)
	}
}

// Begin returns a cursor to the first element, or End() if the tree is empty.
func (t *Tree) Begin() (Cursor, error) {
	leaf, path, err := t.descendLeftmost(t.header.RootNodeID, nil)
	if err != nil {
		return Cursor{}, err
	}
	if leaf.count() == 0 {
		releasePath(path)
		leaf.h.Release()
		return t.End(), nil
	}
	return Cursor{t: t, leaf: leaf, idx: 0, path: path}, nil
}

// LowerBoundFunc returns a cursor to the first element whose key does
// not sort before the probe's target, or End() if there is none.
func (t *Tree) LowerBoundFunc(probe Probe) (Cursor, error) {
	leaf, path, err := t.descendSpecialLowerBound(probe)
	if err != nil {
		return Cursor{}, err
	}
	idx := leafLowerBound(leaf, probe)
	if idx < leaf.count() {
		return Cursor{t: t, leaf: leaf, idx: idx, path: path}, nil
	}
	next, path2, err := t.nextLeaf(leaf, path)
	if err != nil {
		return Cursor{}, err
	}
	if next.h.Buffer().IsDummy() || next.count() == 0 {
		return Cursor{t: t, leaf: next, path: path2}, nil
	}
	return Cursor{t: t, leaf: next, idx: 0, path: path2}, nil
}

// LowerBound returns a cursor to the first element whose key is not
// less than k, or End() if there is none (spec §4.F).
func (t *Tree) LowerBound(k []byte) (Cursor, error) {
	return t.LowerBoundFunc(t.probeFor(k))
}

// UpperBoundFunc returns a cursor to the first element whose key sorts
// after the probe's target, or End() if there is none.
func (t *Tree) UpperBoundFunc(probe Probe) (Cursor, error) {
	var path []pathFrame
	id := t.header.RootNodeID
	var leaf view
	for {
		v, err := t.getNode(id)
		if err != nil {
			releasePath(path)
			return Cursor{}, err
		}
		if v.isLeaf() {
			leaf = v
			break
		}
		slot := branchUpperBound(v, probe)
		path = append(path, pathFrame{node: v, slot: slot})
		id = v.branchChild(slot)
	}
	idx := leafUpperBound(leaf, probe)
	if idx < leaf.count() {
		return Cursor{t: t, leaf: leaf, idx: idx, path: path}, nil
	}
	next, path2, err := t.nextLeaf(leaf, path)
	if err != nil {
		return Cursor{}, err
	}
	if next.h.Buffer().IsDummy() || next.count() == 0 {
		return Cursor{t: t, leaf: next, path: path2}, nil
	}
	return Cursor{t: t, leaf: next, idx: 0, path: path2}, nil
}

// UpperBound returns a cursor to the first element whose key is
// greater than k, or End() if there is none.
func (t *Tree) UpperBound(k []byte) (Cursor, error) {
	return t.UpperBoundFunc(t.probeFor(k))
}

// FindFunc returns LowerBoundFunc(probe) if it lands on a key the probe
// reports equal, else End().
func (t *Tree) FindFunc(probe Probe) (Cursor, error) {
	c, err := t.LowerBoundFunc(probe)
	if err != nil {
		return Cursor{}, err
	}
	if !c.IsEnd() && probe(c.Key()) == 0 {
		return c, nil
	}
	c.Release()
	return t.End(), nil
}

// Find returns LowerBound(k) if it compares equal to k, else End().
func (t *Tree) Find(k []byte) (Cursor, error) {
	return t.FindFunc(t.probeFor(k))
}

// CountFunc returns the number of elements the probe reports equal.
func (t *Tree) CountFunc(probe Probe) (uint64, error) {
	c, err := t.LowerBoundFunc(probe)
	if err != nil {
		return 0, err
	}
	var n uint64
	for !c.IsEnd() && probe(c.Key()) == 0 {
		n++
		next, err := c.Next()
		c.Release()
		if err != nil {
			return 0, err
		}
		c = next
	}
	c.Release()
	return n, nil
}

// Count returns the number of elements comparing equal to k (0 or 1
// for unique containers).
func (t *Tree) Count(k []byte) (uint64, error) {
	return t.CountFunc(t.probeFor(k))
}

// EqualRange returns {LowerBound(k), UpperBound(k)}.
func (t *Tree) EqualRange(k []byte) (Cursor, Cursor, error) {
	lo, err := t.LowerBound(k)
	if err != nil {
		return Cursor{}, Cursor{}, err
	}
	hi, err := t.UpperBound(k)
	if err != nil {
		lo.Release()
		return Cursor{}, Cursor{}, err
	}
	return lo, hi, nil
}
