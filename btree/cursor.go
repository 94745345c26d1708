package btree

import "errors"

// ErrNoPrior marks "no leaf precedes this one". Cursor.Prev returns it
// when stepping back from the first element; eraseAt handles it
// internally.
var ErrNoPrior = errors.New("btree: no prior leaf")

// Cursor is a position within the tree: a handle to a leaf (or the
// tree's end sentinel) plus an index into that leaf's packed record
// array. The handle keeps the leaf resident, so a Cursor remains valid
// across mutations that do not touch its own leaf (spec §3.6).
type Cursor struct {
	t    *Tree
	leaf view
	idx  uint32
	path []pathFrame
}

// End returns the tree's dedicated end cursor.
func (t *Tree) End() Cursor {
	return Cursor{t: t, leaf: newView(t.sentinel.Retain(), t.l)}
}

// IsEnd reports whether c is the end cursor.
func (c Cursor) IsEnd() bool { return c.leaf.h.Buffer().IsDummy() }

// Key returns the key bytes at the cursor's current position. Invalid
// to call on the end cursor.
func (c Cursor) Key() []byte { return c.leaf.leafRecord(c.idx)[:c.t.l.keySize] }

// Record returns the full record bytes (key, plus mapped bytes for
// map/multimap trees) at the cursor's current position.
func (c Cursor) Record() []byte { return c.leaf.leafRecord(c.idx) }

// MarkDirty flags the cursor's leaf as modified, for a "writable"
// iterator that mutates the mapped portion of a record in place.
func (c Cursor) MarkDirty() { c.leaf.markDirty() }

// Release drops the cursor's handle on its leaf (and any retained path
// frames). Callers that store a Cursor for iterator semantics must
// call this when done with it.
func (c Cursor) Release() {
	releasePath(c.path)
	c.leaf.h.Release()
}

// Clone returns an independent cursor at the same position.
func (c Cursor) Clone() Cursor { return c.clone() }

// clone retains a fresh handle to the same leaf and path frames so the
// returned Cursor has independent lifetime from c.
func (c Cursor) clone() Cursor {
	path := make([]pathFrame, len(c.path))
	for i, f := range c.path {
		path[i] = pathFrame{node: newView(f.node.h.Retain(), c.t.l), slot: f.slot}
	}
	return Cursor{t: c.t, leaf: newView(c.leaf.h.Retain(), c.t.l), idx: c.idx, path: path}
}

// Next advances the cursor by one record, crossing into the next leaf
// when the current one is exhausted. Advancing the end cursor is a no-op.
func (c Cursor) Next() (Cursor, error) {
	if c.IsEnd() {
		return c, nil
	}
	if c.idx+1 < c.leaf.count() {
		return Cursor{t: c.t, leaf: newView(c.leaf.h.Retain(), c.t.l), idx: c.idx + 1, path: retainPath(c.path)}, nil
	}
	next, path, err := c.t.nextLeaf(newView(c.leaf.h.Retain(), c.t.l), retainPath(c.path))
	if err != nil {
		return Cursor{}, err
	}
	if next.h.Buffer().IsDummy() || next.count() == 0 {
		return Cursor{t: c.t, leaf: next, path: path}, nil
	}
	return Cursor{t: c.t, leaf: next, idx: 0, path: path}, nil
}

// Prev steps the cursor back by one record, crossing into the prior
// leaf when already at the first record of the current one.
func (c Cursor) Prev() (Cursor, error) {
	if !c.IsEnd() && c.idx > 0 {
		return Cursor{t: c.t, leaf: newView(c.leaf.h.Retain(), c.t.l), idx: c.idx - 1, path: retainPath(c.path)}, nil
	}
	var prior view
	var path []pathFrame
	var err error
	if c.IsEnd() {
		prior, path, err = c.t.descendRightmost(c.t.header.RootNodeID, nil)
	} else {
		prior, path, err = c.t.priorLeaf(newView(c.leaf.h.Retain(), c.t.l), retainPath(c.path))
	}
	if err != nil {
		return Cursor{}, err
	}
	if prior.count() == 0 {
		return Cursor{t: c.t, leaf: prior, path: path}, nil
	}
	return Cursor{t: c.t, leaf: prior, idx: prior.count() - 1, path: path}, nil
}

// SamePosition reports whether two cursors address the same element
// (same leaf page, same slot), or are both the end cursor.
func (c Cursor) SamePosition(o Cursor) bool {
	if c.IsEnd() || o.IsEnd() {
		return c.IsEnd() && o.IsEnd()
	}
	return c.leaf.h.Buffer().PageID() == o.leaf.h.Buffer().PageID() && c.idx == o.idx
}

// LeafPageID exposes the page id of the cursor's leaf, for callers
// reporting cache/shape diagnostics.
func (c Cursor) LeafPageID() uint32 { return c.leaf.h.Buffer().PageID() }

func retainPath(path []pathFrame) []pathFrame {
	out := make([]pathFrame, len(path))
	for i, f := range path {
		out[i] = pathFrame{node: view{h: f.node.h.Retain(), l: f.node.l}, slot: f.slot}
	}
	return out
}
