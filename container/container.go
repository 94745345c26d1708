package container

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ngina-wtf/pagetree/btree"
	"github.com/ngina-wtf/pagetree/cache"
	"github.com/ngina-wtf/pagetree/diskio"
	"github.com/ngina-wtf/pagetree/errs"
	"github.com/ngina-wtf/pagetree/pageio"
)

// core is the machinery shared by all four container kinds: the
// diskio.File + cache.Manager + btree.Tree stack, the key/mapped
// codecs, and every operation that does not depend on unique-vs-multi
// insert semantics.
type core[K, V any] struct {
	path     string
	mgr      *cache.Manager
	tree     *btree.Tree
	keyCodec Codec[K]
	valCodec Codec[V]
	compare  func(K, K) int
	flags    OpenFlag
	instance uuid.UUID
	isOpen   bool
}

func openCore[K, V any](path string, kc Codec[K], vc Codec[V], compare func(K, K) int, kind pageio.Kind, opts []Option) (*core[K, V], error) {
	cfg := apply(opts)
	if compare == nil || kc.Encode == nil || kc.Decode == nil || kc.Size == 0 {
		return nil, errs.New(errs.KindInvalidArgument, "key codec and comparator are required")
	}
	if cfg.flags&ReadOnly != 0 && cfg.flags&Truncate != 0 {
		return nil, errs.New(errs.KindInvalidArgument, "read_only and truncate flags are incompatible")
	}
	readOnly := cfg.flags&ReadOnly != 0

	dflags := diskio.In
	if !readOnly {
		dflags |= diskio.Out
	}
	if cfg.flags&Truncate != 0 {
		dflags |= diskio.Truncate
	}
	if cfg.flags&Preload != 0 {
		dflags |= diskio.Preload
	}

	f, err := diskio.Open(path, dflags)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, path, err)
	}
	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(errs.KindIO, path, err)
	}

	var (
		hdr pageio.Header
		mgr *cache.Manager
	)
	if size == 0 {
		hdr, mgr, err = createNew(f, cfg, kc.Size, vc.Size, kind, readOnly)
	} else {
		hdr, mgr, err = openExisting(f, cfg, kc.Size, vc.Size, kind, size, readOnly)
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	bcmp := func(a, b []byte) int { return compare(kc.Decode(a), kc.Decode(b)) }
	tr, err := btree.Open(mgr, hdr, bcmp, readOnly, cfg.flags&CacheBranches != 0)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	return &core[K, V]{
		path:     path,
		mgr:      mgr,
		tree:     tr,
		keyCodec: kc,
		valCodec: vc,
		compare:  compare,
		flags:    cfg.flags,
		instance: uuid.New(),
		isOpen:   true,
	}, nil
}

// createNew stamps a header into a freshly truncated (or just created)
// file and allocates the empty root leaf at page 1.
func createNew(f *diskio.File, cfg config, keySize, mappedSize uint32, kind pageio.Kind, readOnly bool) (pageio.Header, *cache.Manager, error) {
	if readOnly {
		return pageio.Header{}, nil, errs.New(errs.KindNotABTree, "file is empty")
	}
	if err := checkGeometry(cfg.pageSize, keySize, keySize+mappedSize); err != nil {
		return pageio.Header{}, nil, err
	}

	sig := cfg.signature
	if sig == pageio.WildcardSignature {
		// Stamp a fresh random signature so unrelated files never
		// validate against each other by accident.
		u := uuid.New()
		sig = binary.LittleEndian.Uint64(u[0:8]) ^ binary.LittleEndian.Uint64(u[8:16])
		if sig == pageio.WildcardSignature {
			sig--
		}
	}

	hdr := pageio.NewHeader(cfg.endianness, cfg.pageSize, keySize, mappedSize, cfg.label, sig, kind)
	mgr := cache.Open(f, cfg.pageSize, 0, cfg.maxCacheSize, false)
	if cfg.lruK > 1 {
		mgr.UseLruK(cfg.lruK)
	}
	if cfg.maxCacheMegabytes > 0 {
		mgr.MaxCacheMegabytes(cfg.maxCacheMegabytes)
	}
	if err := btree.InitNewFile(mgr, hdr); err != nil {
		return pageio.Header{}, nil, err
	}
	return hdr, mgr, nil
}

// openExisting reads and validates page 0 before any buffer operation,
// since the manager must be told the on-disk page size up front.
func openExisting(f *diskio.File, cfg config, keySize, mappedSize uint32, kind pageio.Kind, size int64, readOnly bool) (pageio.Header, *cache.Manager, error) {
	if size < pageio.HeaderSize {
		return pageio.Header{}, nil, errs.New(errs.KindNotABTree, "file too short to hold a header page")
	}
	raw := make([]byte, pageio.HeaderSize)
	if _, err := f.Seek(0, diskio.Begin); err != nil {
		return pageio.Header{}, nil, errs.Wrap(errs.KindIO, f.Path(), err)
	}
	res, err := f.Read(raw)
	if err != nil {
		return pageio.Header{}, nil, errs.Wrap(errs.KindIO, f.Path(), err)
	}
	if res.N < len(raw) {
		return pageio.Header{}, nil, errs.New(errs.KindNotABTree, "truncated header page")
	}
	hdr, err := pageio.Unmarshal(raw)
	if err != nil {
		return pageio.Header{}, nil, err
	}
	if err := checkGeometry(hdr.NodeSize, hdr.KeySize, hdr.KeySize+hdr.MappedSize); err != nil {
		return pageio.Header{}, nil, err
	}
	if err := pageio.Validate(hdr, cfg.signature, kind, keySize, mappedSize,
		cfg.flags&KeyVaries != 0, cfg.flags&MappedVaries != 0); err != nil {
		return pageio.Header{}, nil, err
	}

	nodeSize := int64(hdr.NodeSize)
	nextPageID := uint32((size + nodeSize - 1) / nodeSize)
	mgr := cache.Open(f, hdr.NodeSize, nextPageID, cfg.maxCacheSize, readOnly)
	if cfg.lruK > 1 {
		mgr.UseLruK(cfg.lruK)
	}
	if cfg.maxCacheMegabytes > 0 {
		mgr.MaxCacheMegabytes(cfg.maxCacheMegabytes)
	}
	return hdr, mgr, nil
}

// checkGeometry refuses page sizes that cannot hold at least three
// elements of either node kind (spec §3.2.2).
func checkGeometry(pageSize, keySize, recordSize uint32) error {
	if pageSize < pageio.MinNodeSize {
		return errs.New(errs.KindInvalidArgument,
			fmt.Sprintf("page size %d below minimum %d", pageSize, pageio.MinNodeSize))
	}
	leafCap := (pageSize - pageio.NodePrologueSize) / recordSize
	branchCap := (pageSize - pageio.NodePrologueSize - 4) / (keySize + 4)
	if leafCap < 3 || branchCap < 3 {
		return errs.New(errs.KindInvalidArgument,
			fmt.Sprintf("page size %d holds only %d leaf / %d branch elements; need at least 3 of each",
				pageSize, leafCap, branchCap))
	}
	return nil
}

func (c *core[K, V]) requireOpen() error {
	if !c.isOpen {
		return errs.ErrClosed
	}
	return nil
}

// Close flushes all dirty state and releases the file. A second Close
// reports the container closed.
func (c *core[K, V]) Close() error {
	if !c.isOpen {
		return errs.ErrClosed
	}
	c.isOpen = false
	return c.tree.Close()
}

// Flush writes the header and every dirty page to disk.
func (c *core[K, V]) Flush() error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	return c.tree.Flush()
}

// IsOpen reports whether the container is usable.
func (c *core[K, V]) IsOpen() bool { return c.isOpen }

// Path is the file path the container was opened on.
func (c *core[K, V]) Path() string { return c.path }

// Flags is the open-flag bitmask the container was opened with.
func (c *core[K, V]) Flags() OpenFlag { return c.flags }

// Size is the number of elements in the container.
func (c *core[K, V]) Size() uint64 { return c.tree.Size() }

// Empty reports whether the container holds no elements.
func (c *core[K, V]) Empty() bool { return c.tree.Empty() }

// NodeSize is the on-disk page size in bytes.
func (c *core[K, V]) NodeSize() uint32 { return c.tree.Header().NodeSize }

// MaxSize is the theoretical element capacity: every addressable page
// filled as a leaf.
func (c *core[K, V]) MaxSize() uint64 {
	h := c.tree.Header()
	perLeaf := uint64((h.NodeSize - pageio.NodePrologueSize) / (h.KeySize + h.MappedSize))
	return uint64(math.MaxUint32-1) * perLeaf
}

// Header returns the decoded page-0 header.
func (c *core[K, V]) Header() pageio.Header { return c.tree.Header() }

// Label is the user label stamped into the header at creation.
func (c *core[K, V]) Label() string { return c.tree.Header().Label }

// Signature is the 64-bit user signature recorded in the header.
func (c *core[K, V]) Signature() uint64 { return c.tree.Header().Signature }

// MaxCacheSize returns the buffer manager's LRU target (-1 when
// unbounded).
func (c *core[K, V]) MaxCacheSize() int64 { return c.mgr.MaxCacheSize() }

// SetMaxCacheSize adjusts the LRU target, never letting it drop below
// the parent-chain pin requirement of root_level+1 buffers.
func (c *core[K, V]) SetMaxCacheSize(n int64) {
	if min := int64(c.tree.Header().RootLevel) + 1; n >= 0 && n < min {
		n = min
	}
	c.mgr.SetMaxCacheSize(n)
}

// SetMaxCacheMegabytes bounds the cache by a byte budget instead of a
// raw page count.
func (c *core[K, V]) SetMaxCacheMegabytes(mb int64) {
	c.mgr.MaxCacheMegabytes(mb)
	if min := int64(c.tree.Header().RootLevel) + 1; c.mgr.MaxCacheSize() >= 0 && c.mgr.MaxCacheSize() < min {
		c.mgr.SetMaxCacheSize(min)
	}
}

// KeyComp returns the comparator the container orders keys with.
func (c *core[K, V]) KeyComp() func(K, K) int { return c.compare }

func (c *core[K, V]) encodeKey(k K) []byte {
	buf := make([]byte, c.keyCodec.Size)
	c.keyCodec.encodeInto(buf, k)
	return buf
}

func (c *core[K, V]) encodeRecord(k K, v V) []byte {
	buf := make([]byte, c.keyCodec.Size+c.valCodec.Size)
	c.keyCodec.encodeInto(buf, k)
	if c.valCodec.Size > 0 {
		c.valCodec.Encode(buf[c.keyCodec.Size:], v)
	}
	return buf
}

func (c *core[K, V]) iter(cur btree.Cursor) *Iterator[K, V] {
	return &Iterator[K, V]{c: c, cur: cur}
}

func (c *core[K, V]) probeFor(f func(K) int) btree.Probe {
	return func(key []byte) int { return f(c.keyCodec.Decode(key)) }
}

// Begin returns an iterator at the first element (or at end for an
// empty container).
func (c *core[K, V]) Begin() (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.Begin()
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

// End returns the end iterator.
func (c *core[K, V]) End() *Iterator[K, V] {
	return c.iter(c.tree.End())
}

// RBegin returns an iterator at the last element; stepping it with
// Prev walks the container in reverse.
func (c *core[K, V]) RBegin() (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	if c.tree.Empty() {
		return c.End(), nil
	}
	cur, err := c.tree.End().Prev()
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

// Find returns an iterator at the first element whose key compares
// equal to k, or the end iterator.
func (c *core[K, V]) Find(k K) (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.Find(c.encodeKey(k))
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

// Contains reports whether any element's key compares equal to k.
func (c *core[K, V]) Contains(k K) (bool, error) {
	it, err := c.Find(k)
	if err != nil {
		return false, err
	}
	defer it.Release()
	return !it.IsEnd(), nil
}

// Count returns the number of elements whose key compares equal to k
// (0 or 1 for unique containers).
func (c *core[K, V]) Count(k K) (uint64, error) {
	if err := c.requireOpen(); err != nil {
		return 0, err
	}
	return c.tree.Count(c.encodeKey(k))
}

// LowerBound returns an iterator at the first element whose key is not
// less than k.
func (c *core[K, V]) LowerBound(k K) (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.LowerBound(c.encodeKey(k))
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

// UpperBound returns an iterator at the first element whose key is
// greater than k.
func (c *core[K, V]) UpperBound(k K) (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.UpperBound(c.encodeKey(k))
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

// EqualRange returns {LowerBound(k), UpperBound(k)}.
func (c *core[K, V]) EqualRange(k K) (*Iterator[K, V], *Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, nil, err
	}
	lo, hi, err := c.tree.EqualRange(c.encodeKey(k))
	if err != nil {
		return nil, nil, err
	}
	return c.iter(lo), c.iter(hi), nil
}

// FindBy, LowerBoundBy, UpperBoundBy, and CountBy are the heterogeneous
// lookups: probe reports the ordering of a stored key against the
// caller's target, so any type comparable to K through the caller's own
// logic can drive a search without being encoded as a K.
func (c *core[K, V]) FindBy(probe func(K) int) (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.FindFunc(c.probeFor(probe))
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

func (c *core[K, V]) LowerBoundBy(probe func(K) int) (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.LowerBoundFunc(c.probeFor(probe))
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

func (c *core[K, V]) UpperBoundBy(probe func(K) int) (*Iterator[K, V], error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}
	cur, err := c.tree.UpperBoundFunc(c.probeFor(probe))
	if err != nil {
		return nil, err
	}
	return c.iter(cur), nil
}

func (c *core[K, V]) CountBy(probe func(K) int) (uint64, error) {
	if err := c.requireOpen(); err != nil {
		return 0, err
	}
	return c.tree.CountFunc(c.probeFor(probe))
}

// Erase removes the element it points at, advancing it to the
// successor. The iterator is left at end if the last element went.
func (c *core[K, V]) Erase(it *Iterator[K, V]) error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	next, err := c.tree.EraseCursor(it.cur)
	if err != nil {
		it.cur = c.tree.End()
		return err
	}
	it.cur = next
	return nil
}

// EraseKey removes every element whose key compares equal to k and
// returns the number removed.
func (c *core[K, V]) EraseKey(k K) (uint64, error) {
	if err := c.requireOpen(); err != nil {
		return 0, err
	}
	return c.tree.EraseKey(c.encodeKey(k))
}

// EraseRange removes [first, last), consuming both iterators.
func (c *core[K, V]) EraseRange(first, last *Iterator[K, V]) (uint64, error) {
	if err := c.requireOpen(); err != nil {
		first.Release()
		last.Release()
		return 0, err
	}
	n, err := c.tree.EraseRange(first.cur, last.cur)
	first.cur = c.tree.End()
	last.cur = c.tree.End()
	return n, err
}

// Clear erases every element, keeping the container open; freed pages
// stay in the file on the free list for reuse.
func (c *core[K, V]) Clear() error {
	if err := c.requireOpen(); err != nil {
		return err
	}
	return c.tree.Clear()
}

// Shape walks the tree and reports its node census.
func (c *core[K, V]) Shape() (btree.Shape, error) {
	if err := c.requireOpen(); err != nil {
		return btree.Shape{}, err
	}
	return c.tree.WalkShape()
}
