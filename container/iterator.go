package container

import (
	"github.com/ngina-wtf/pagetree/btree"
	"github.com/ngina-wtf/pagetree/errs"
)

// Iterator is a cursor over a container's elements in comparator
// order. It pins its current leaf in the buffer cache, so it stays
// valid across mutations that do not touch that leaf; Release must be
// called when the iterator is no longer needed or the leaf stays
// pinned until the container closes.
type Iterator[K, V any] struct {
	c   *core[K, V]
	cur btree.Cursor
}

// IsEnd reports whether the iterator is past the last element.
func (it *Iterator[K, V]) IsEnd() bool { return it.cur.IsEnd() }

// Key returns the key at the current position. Invalid at end.
func (it *Iterator[K, V]) Key() K { return it.c.keyCodec.Decode(it.cur.Key()) }

// Value returns the mapped value at the current position; for set and
// multiset containers it is the zero value.
func (it *Iterator[K, V]) Value() V {
	if it.c.valCodec.Size == 0 {
		var zero V
		return zero
	}
	return it.c.valCodec.Decode(it.cur.Record()[it.c.keyCodec.Size:])
}

// Next advances to the following element (or end).
func (it *Iterator[K, V]) Next() error {
	next, err := it.cur.Next()
	if err != nil {
		return err
	}
	it.cur.Release()
	it.cur = next
	return nil
}

// Prev steps back to the preceding element. Stepping back from the
// first element returns btree.ErrNoPrior and leaves the iterator
// where it was.
func (it *Iterator[K, V]) Prev() error {
	prev, err := it.cur.Prev()
	if err != nil {
		return err
	}
	it.cur.Release()
	it.cur = prev
	return nil
}

// Equal reports whether two iterators address the same position.
func (it *Iterator[K, V]) Equal(o *Iterator[K, V]) bool {
	return it.cur.SamePosition(o.cur)
}

// Clone returns an independent iterator at the same position.
func (it *Iterator[K, V]) Clone() *Iterator[K, V] {
	return it.c.iter(it.cur.Clone())
}

// SetValue overwrites the mapped value at the current position in
// place, marking the leaf dirty — the writable-iterator path. Keys are
// immutable; key-only containers and read-only opens reject the call.
func (it *Iterator[K, V]) SetValue(v V) error {
	if err := it.c.requireOpen(); err != nil {
		return err
	}
	if it.c.flags&ReadOnly != 0 {
		return errs.ErrReadOnly
	}
	if it.c.valCodec.Size == 0 {
		return errs.New(errs.KindInvalidArgument, "container stores keys only")
	}
	if it.cur.IsEnd() {
		return errs.New(errs.KindInvalidArgument, "cannot write through the end iterator")
	}
	it.c.valCodec.Encode(it.cur.Record()[it.c.keyCodec.Size:], v)
	it.cur.MarkDirty()
	return nil
}

// Release drops the iterator's pin on its leaf.
func (it *Iterator[K, V]) Release() { it.cur.Release() }
