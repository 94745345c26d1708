package btree

import (
	"github.com/ngina-wtf/pagetree/cache"
	"github.com/ngina-wtf/pagetree/errs"
	"github.com/ngina-wtf/pagetree/pageio"
)

// Compare orders two raw key byte slices. Implementations must agree
// with the byte layout a Tree's records were encoded with; it is the
// only place key ordering is decided, which is what lets lookups
// accept any probe type the container facade knows how to encode
// (spec §9 "comparator heterogeneity").
type Compare func(a, b []byte) int

// Tree is the on-disk B+tree engine: node layout, search, split/merge,
// all parameterized by a fixed record layout and a Compare function.
// It knows nothing about Go generics or user key/value types — that
// translation lives in the container package, one level up.
type Tree struct {
	mgr *cache.Manager
	l   layout

	unique        bool
	compare       Compare
	readOnly      bool
	cacheBranches bool

	headerHandle cache.Handle
	header       pageio.Header

	sentinel cache.Handle
	okToPack bool
}

// Open wires a Tree on top of an already-open cache.Manager, reading
// page 0 as the header. header must already have been validated by
// the caller (the container facade owns header.Validate).
func Open(mgr *cache.Manager, header pageio.Header, compare Compare, readOnly, cacheBranches bool) (*Tree, error) {
	hh, err := mgr.Get(0, true)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		mgr: mgr,
		l: layout{
			order:      header.Endianness.Order(),
			pageSize:   header.NodeSize,
			keySize:    header.KeySize,
			recordSize: header.KeySize + header.MappedSize,
		},
		unique:        header.Kind().Unique,
		compare:       compare,
		readOnly:      readOnly,
		cacheBranches: cacheBranches,
		headerHandle:  hh,
		header:        header,
		sentinel:      cache.NewDummyHandle(),
		okToPack:      true,
	}

	// The parent chain can pin up to root_level+1 buffers; keep the
	// cache ceiling able to hold at least that many (spec §5).
	if want := int64(header.RootLevel) + 1; mgr.MaxCacheSize() >= 0 && mgr.MaxCacheSize() < want {
		mgr.SetMaxCacheSize(want)
	}
	return t, nil
}

// InitNewFile writes the header for a freshly truncated file and
// allocates an empty root leaf at page 1. Called by the container
// facade before Open, only when the underlying file did not already
// exist.
func InitNewFile(mgr *cache.Manager, header pageio.Header) error {
	hbuf, err := mgr.NewBuffer() // page 0
	if err != nil {
		return err
	}
	if hbuf.Buffer().PageID() != 0 {
		hbuf.Release()
		return errs.New(errs.KindInvalidArgument, "header must be the first page allocated in a new file")
	}
	enc, err := pageio.Marshal(header, header.NodeSize)
	if err != nil {
		hbuf.Release()
		return err
	}
	copy(hbuf.Buffer().Data(), enc)
	hbuf.Buffer().MarkDirty()
	hbuf.Release()

	order := header.Endianness.Order()
	rootBuf, err := mgr.NewBuffer() // page 1
	if err != nil {
		return err
	}
	pageio.PutPrologue(rootBuf.Buffer().Data(), order, pageio.LeafLevel, 0)
	rootBuf.Buffer().MarkDirty()
	rootBuf.Release()

	return mgr.Flush()
}

// Header returns the tree's in-memory view of the page-0 header.
func (t *Tree) Header() pageio.Header { return t.header }

// ReadOnly reports whether mutating operations are rejected.
func (t *Tree) ReadOnly() bool { return t.readOnly }

// Size is the number of elements recorded in the header.
func (t *Tree) Size() uint64 { return t.header.ElementCount }

// Empty reports whether the tree holds no elements.
func (t *Tree) Empty() bool { return t.header.ElementCount == 0 }

// writeHeader re-encodes t.header into the header buffer and marks it
// dirty. Called after any header field changes.
func (t *Tree) writeHeader() error {
	enc, err := pageio.Marshal(t.header, t.l.pageSize)
	if err != nil {
		return err
	}
	copy(t.headerHandle.Buffer().Data(), enc)
	t.headerHandle.Buffer().MarkDirty()
	return nil
}

// Flush writes every dirty buffer, including the header, to disk. On a
// read-only tree nothing is ever dirty and nothing is written.
func (t *Tree) Flush() error {
	if t.readOnly {
		return nil
	}
	if err := t.writeHeader(); err != nil {
		return err
	}
	return t.mgr.Flush()
}

// Close flushes and closes the underlying manager. The sentinel and
// header handles are released first so the manager sees no outstanding
// pins of its own making.
func (t *Tree) Close() error {
	if !t.readOnly {
		if err := t.writeHeader(); err != nil {
			return err
		}
	}
	t.headerHandle.Release()
	t.sentinel.Release()
	return t.mgr.Close()
}

// requireWritable returns errs.ErrReadOnly if the tree was opened read-only.
func (t *Tree) requireWritable() error {
	if t.readOnly {
		return errs.New(errs.KindReadOnlyViolation, "mutation attempted on a read-only container")
	}
	return nil
}

// getNode loads the node at id, pinning branch nodes per the
// cache_branches option.
func (t *Tree) getNode(id uint32) (view, error) {
	h, err := t.mgr.Get(id, false)
	if err != nil {
		return view{}, err
	}
	v := newView(h, t.l)
	if !v.isLeaf() && t.cacheBranches {
		// re-fetch pinned; cheap since it's already resident.
		h.Release()
		h, err = t.mgr.Get(id, true)
		if err != nil {
			return view{}, err
		}
		v = newView(h, t.l)
	}
	return v, nil
}

// allocNode takes a page off the free list if one is available,
// otherwise extends the file by one page, and tags it at the given
// level with zero elements.
func (t *Tree) allocNode(level uint8) (view, error) {
	if err := t.requireWritable(); err != nil {
		return view{}, err
	}

	var h cache.Handle
	if t.header.FreeListHeadID != pageio.NullPageID {
		id := t.header.FreeListHeadID
		fh, err := t.mgr.Get(id, false)
		if err != nil {
			return view{}, err
		}
		next := t.l.order.Uint32(fh.Buffer().Data()[pageio.NodePrologueSize : pageio.NodePrologueSize+4])
		t.header.FreeListHeadID = next
		h = fh
	} else {
		nb, err := t.mgr.NewBuffer()
		if err != nil {
			return view{}, err
		}
		t.header.NodeCount++
		h = nb
	}

	for i := range h.Buffer().Data() {
		h.Buffer().Data()[i] = 0
	}
	pageio.PutPrologue(h.Buffer().Data(), t.l.order, level, 0)
	h.Buffer().MarkDirty()
	return newView(h, t.l), nil
}

// freeNode tags a node page as a free-list entry and prepends it to
// the header's free list (spec §3.7).
func (t *Tree) freeNode(v view) {
	buf := v.buf()
	pageio.PutPrologue(buf, t.l.order, pageio.FreeListLevel, 0)
	t.l.order.PutUint32(buf[pageio.NodePrologueSize:pageio.NodePrologueSize+4], t.header.FreeListHeadID)
	v.markDirty()
	t.header.FreeListHeadID = v.h.Buffer().PageID()
	v.h.Release()
}
