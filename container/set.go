package container

import "github.com/ngina-wtf/pagetree/pageio"

// Set is an on-disk ordered set: unique keys, no mapped values.
type Set[K any] struct {
	*core[K, struct{}]
}

// OpenSet opens (or creates, absent the ReadOnly flag) the set stored
// at path. key and compare define the element encoding and ordering;
// both are fixed for the life of the file.
func OpenSet[K any](path string, key Codec[K], compare func(K, K) int, opts ...Option) (*Set[K], error) {
	c, err := openCore(path, key, nothingCodec(), compare, pageio.Kind{Unique: true, KeyOnly: true}, opts)
	if err != nil {
		return nil, err
	}
	return &Set[K]{core: c}, nil
}

// Insert adds k if no equal key is present. It returns an iterator at
// the inserted (or already-present) element and whether an insert
// happened.
func (s *Set[K]) Insert(k K) (*Iterator[K, struct{}], bool, error) {
	if err := s.requireOpen(); err != nil {
		return nil, false, err
	}
	cur, ok, err := s.tree.InsertUnique(s.encodeRecord(k, struct{}{}))
	if err != nil {
		return nil, false, err
	}
	return s.iter(cur), ok, nil
}

// Multiset is an on-disk ordered multiset: duplicate keys allowed,
// equal keys kept in insertion order.
type Multiset[K any] struct {
	*core[K, struct{}]
}

// OpenMultiset opens (or creates) the multiset stored at path.
func OpenMultiset[K any](path string, key Codec[K], compare func(K, K) int, opts ...Option) (*Multiset[K], error) {
	c, err := openCore(path, key, nothingCodec(), compare, pageio.Kind{Unique: false, KeyOnly: true}, opts)
	if err != nil {
		return nil, err
	}
	return &Multiset[K]{core: c}, nil
}

// Insert adds k unconditionally, after any elements with an equal key,
// returning an iterator at the new element.
func (s *Multiset[K]) Insert(k K) (*Iterator[K, struct{}], error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := s.tree.InsertMulti(s.encodeRecord(k, struct{}{}))
	if err != nil {
		return nil, err
	}
	return s.iter(cur), nil
}
