// Package container is the public facade over the btree engine: set,
// multiset, map, and multimap types built from a fixed-size Codec,
// opened on top of a diskio.File + cache.Manager + btree.Tree stack,
// with header validation enforcing spec §4.I's open-time contract.
package container

import "github.com/ngina-wtf/pagetree/pageio"

// OpenFlag is the bitmask a caller passes to Open (spec §6.2),
// mirroring the original's flags::bitmask (unique/key_only are instead
// fixed by which Open function is called, read_only/preload/truncate map
// directly, cache_branches is new).
type OpenFlag uint32

const (
	// ReadOnly opens the file without permitting mutation; NewBuffer and
	// every Tree mutator reject with errs.ErrReadOnly.
	ReadOnly OpenFlag = 1 << iota
	// Truncate discards any existing file content and starts empty.
	Truncate
	// Preload hints the OS to read the whole file sequentially into the
	// page cache before first use (diskio.Preload).
	Preload
	// CacheBranches pins every branch node resident for the container's
	// lifetime instead of letting them compete for LRU eviction like leaves.
	CacheBranches
	// KeyVaries suppresses the key-size check when reopening a file whose
	// key encoding is declared variable-length by the caller.
	KeyVaries
	// MappedVaries suppresses the mapped-size check at reopen, the
	// mapped-type counterpart of KeyVaries.
	MappedVaries
)

// Option configures a container at open time (spec §6: page size, cache
// size, flags, signature, label). The comparator is a positional
// argument of each Open function, not an Option.
type Option func(*config)

type config struct {
	pageSize          uint32
	maxCacheSize      int64
	maxCacheMegabytes int64
	flags             OpenFlag
	signature         uint64
	label             string
	endianness        pageio.Endianness
	lruK              int
}

func defaultConfig() config {
	return config{
		pageSize:     4096,
		maxCacheSize: -1,
		signature:    pageio.WildcardSignature,
		endianness:   pageio.LittleEndian,
	}
}

// WithPageSize sets the on-disk node size for a brand-new file. Ignored
// when opening an existing file, whose own page size governs.
func WithPageSize(n uint32) Option { return func(c *config) { c.pageSize = n } }

// WithMaxCacheSize bounds the buffer manager's resident page count
// (spec §4.D); -1 (the default) leaves it unbounded.
func WithMaxCacheSize(n int64) Option { return func(c *config) { c.maxCacheSize = n } }

// WithMaxCacheMegabytes bounds the buffer manager by a byte budget
// instead of a raw page count (spec §6.3); takes effect after the page
// size is known, overriding WithMaxCacheSize.
func WithMaxCacheMegabytes(mb int64) Option { return func(c *config) { c.maxCacheMegabytes = mb } }

// WithFlags sets the OpenFlag bitmask.
func WithFlags(f OpenFlag) Option { return func(c *config) { c.flags |= f } }

// WithSignature sets the 64-bit user signature checked/stamped on open
// (spec §3.1); the default is the wildcard, which skips the check.
func WithSignature(sig uint64) Option { return func(c *config) { c.signature = sig } }

// WithLabel sets the free-form label stamped into a brand-new header.
func WithLabel(label string) Option { return func(c *config) { c.label = label } }

// WithBigEndian stores multi-byte header/node fields in big-endian form
// for a brand-new file (default little-endian).
func WithBigEndian() Option { return func(c *config) { c.endianness = pageio.BigEndian } }

// WithLruK selects eviction victims by backward k-distance instead of
// strict LRU order, for workloads where one-off scans would otherwise
// flush the hot set out of the cache.
func WithLruK(k int) Option { return func(c *config) { c.lruK = k } }

func apply(opts []Option) config {
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	return c
}
