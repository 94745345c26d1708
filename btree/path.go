package btree

// pathFrame is one ancestor branch node on the way from root to a
// leaf, plus the slot that was followed to reach the next node down.
// This is the explicit, operation-scoped stand-in for the teacher
// spec's in-node parent pointers (spec §9 "model the parent chain
// explicitly as an operation-scoped data structure... instead of
// embedding parent pointers in the cached node").
type pathFrame struct {
	node view
	slot uint32
}

// releasePath releases every branch handle held by a path.
func releasePath(path []pathFrame) {
	for _, f := range path {
		f.node.h.Release()
	}
}

// descendLeftmost follows child 0 at every level starting from id
// until it reaches a leaf, appending a frame per branch it passes
// through.
func (t *Tree) descendLeftmost(id uint32, path []pathFrame) (view, []pathFrame, error) {
	for {
		v, err := t.getNode(id)
		if err != nil {
			releasePath(path)
			return view{}, nil, err
		}
		if v.isLeaf() {
			return v, path, nil
		}
		path = append(path, pathFrame{node: v, slot: 0})
		id = v.branchChild(0)
	}
}

// descendRightmost follows the trailing end-pseudo-child at every
// level starting from id until it reaches a leaf.
func (t *Tree) descendRightmost(id uint32, path []pathFrame) (view, []pathFrame, error) {
	for {
		v, err := t.getNode(id)
		if err != nil {
			releasePath(path)
			return view{}, nil, err
		}
		if v.isLeaf() {
			return v, path, nil
		}
		slot := v.count()
		path = append(path, pathFrame{node: v, slot: slot})
		id = v.branchChild(slot)
	}
}

// nextLeaf finds the leaf immediately following the one at the bottom
// of path in tree order, per spec §4.E: walk up until an ancestor's
// current slot is not at its rightmost edge, step to the adjacent
// slot, then descend leftmost from there. Releases every frame popped
// along the way along with the handle of leaf itself. Returns the
// sentinel (end) view if no such leaf exists.
func (t *Tree) nextLeaf(leaf view, path []pathFrame) (view, []pathFrame, error) {
	leaf.h.Release()
	for len(path) > 0 {
		top := path[len(path)-1]
		path = path[:len(path)-1]
		if top.slot < top.node.count() {
			nextSlot := top.slot + 1
			childID := top.node.branchChild(nextSlot)
			path = append(path, pathFrame{node: top.node, slot: nextSlot})
			return t.descendLeftmost(childID, path)
		}
		top.node.h.Release()
	}
	return newView(t.sentinel.Retain(), t.l), nil, nil
}

// priorLeaf is nextLeaf's mirror: step to the adjacent lower slot, then
// descend rightmost.
func (t *Tree) priorLeaf(leaf view, path []pathFrame) (view, []pathFrame, error) {
	leaf.h.Release()
	for len(path) > 0 {
		top := path[len(path)-1]
		path = path[:len(path)-1]
		if top.slot > 0 {
			prevSlot := top.slot - 1
			childID := top.node.branchChild(prevSlot)
			path = append(path, pathFrame{node: top.node, slot: prevSlot})
			return t.descendRightmost(childID, path)
		}
		top.node.h.Release()
	}
	return view{}, nil, ErrNoPrior
}
