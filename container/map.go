package container

import (
	"github.com/ngina-wtf/pagetree/errs"
	"github.com/ngina-wtf/pagetree/pageio"
)

// Map is an on-disk ordered map: unique keys, each carrying a
// fixed-size mapped value.
type Map[K, V any] struct {
	*core[K, V]
}

// OpenMap opens (or creates, absent the ReadOnly flag) the map stored
// at path. key, mapped, and compare define the record encoding and
// ordering; all are fixed for the life of the file.
func OpenMap[K, V any](path string, key Codec[K], mapped Codec[V], compare func(K, K) int, opts ...Option) (*Map[K, V], error) {
	if mapped.Encode == nil || mapped.Decode == nil || mapped.Size == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "mapped codec is required for a map container")
	}
	c, err := openCore(path, key, mapped, compare, pageio.Kind{Unique: true, KeyOnly: false}, opts)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{core: c}, nil
}

// Insert adds (k, v) if no equal key is present. It returns an
// iterator at the inserted (or already-present) element and whether an
// insert happened; an existing element's value is left untouched.
func (m *Map[K, V]) Insert(k K, v V) (*Iterator[K, V], bool, error) {
	if err := m.requireOpen(); err != nil {
		return nil, false, err
	}
	cur, ok, err := m.tree.InsertUnique(m.encodeRecord(k, v))
	if err != nil {
		return nil, false, err
	}
	return m.iter(cur), ok, nil
}

// Get returns the value mapped to k, reporting whether k was present.
func (m *Map[K, V]) Get(k K) (V, bool, error) {
	var zero V
	it, err := m.Find(k)
	if err != nil {
		return zero, false, err
	}
	defer it.Release()
	if it.IsEnd() {
		return zero, false, nil
	}
	return it.Value(), true, nil
}

// Put inserts (k, v), overwriting the value in place when k is already
// present.
func (m *Map[K, V]) Put(k K, v V) error {
	it, ok, err := m.Insert(k, v)
	if err != nil {
		return err
	}
	defer it.Release()
	if !ok {
		return it.SetValue(v)
	}
	return nil
}

// Multimap is an on-disk ordered multimap: duplicate keys allowed,
// equal keys kept in insertion order.
type Multimap[K, V any] struct {
	*core[K, V]
}

// OpenMultimap opens (or creates) the multimap stored at path.
func OpenMultimap[K, V any](path string, key Codec[K], mapped Codec[V], compare func(K, K) int, opts ...Option) (*Multimap[K, V], error) {
	if mapped.Encode == nil || mapped.Decode == nil || mapped.Size == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "mapped codec is required for a multimap container")
	}
	c, err := openCore(path, key, mapped, compare, pageio.Kind{Unique: false, KeyOnly: false}, opts)
	if err != nil {
		return nil, err
	}
	return &Multimap[K, V]{core: c}, nil
}

// Insert adds (k, v) unconditionally, after any elements with an equal
// key, returning an iterator at the new element.
func (m *Multimap[K, V]) Insert(k K, v V) (*Iterator[K, V], error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := m.tree.InsertMulti(m.encodeRecord(k, v))
	if err != nil {
		return nil, err
	}
	return m.iter(cur), nil
}
