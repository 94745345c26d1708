package container

import "gopkg.in/yaml.v3"

// Diagnostics is a point-in-time, human-readable snapshot of a
// container's header, tree shape, and cache state — the structured
// counterpart of the original buffer-manager dump diagnostics, meant
// for debugging and cache tuning.
type Diagnostics struct {
	Instance    string      `yaml:"instance"`
	Path        string      `yaml:"path"`
	Label       string      `yaml:"label"`
	NodeSize    uint32      `yaml:"node_size"`
	Elements    uint64      `yaml:"elements"`
	RootLevel   uint8       `yaml:"root_level"`
	NodeCount   uint32      `yaml:"node_count"`
	LeafNodes   uint64      `yaml:"leaf_nodes"`
	BranchNodes uint64      `yaml:"branch_nodes"`
	FreePages   uint64      `yaml:"free_pages"`
	Cache       CacheReport `yaml:"cache"`
}

// CacheReport carries the buffer manager's shape and counters.
type CacheReport struct {
	MaxCacheSize      int64  `yaml:"max_cache_size"`
	ResidentBuffers   int    `yaml:"resident_buffers"`
	AvailableBuffers  int    `yaml:"available_buffers"`
	ActiveReads       uint64 `yaml:"active_buffer_reads"`
	AvailableReads    uint64 `yaml:"available_buffer_reads"`
	NeverFreeReads    uint64 `yaml:"never_free_buffer_reads"`
	DiskReads         uint64 `yaml:"disk_reads"`
	DiskWrites        uint64 `yaml:"disk_writes"`
	NewBufferRequests uint64 `yaml:"new_buffer_requests"`
	BufferAllocs      uint64 `yaml:"buffer_allocs"`
	NeverFreeHonored  uint64 `yaml:"never_free_honored"`
}

// Diagnostics walks the tree and snapshots the cache.
func (c *core[K, V]) Diagnostics() (Diagnostics, error) {
	if err := c.requireOpen(); err != nil {
		return Diagnostics{}, err
	}
	shape, err := c.tree.WalkShape()
	if err != nil {
		return Diagnostics{}, err
	}
	snap := c.mgr.TakeSnapshot()
	h := c.tree.Header()
	return Diagnostics{
		Instance:    c.instance.String(),
		Path:        c.path,
		Label:       h.Label,
		NodeSize:    h.NodeSize,
		Elements:    h.ElementCount,
		RootLevel:   h.RootLevel,
		NodeCount:   h.NodeCount,
		LeafNodes:   shape.LeafNodes,
		BranchNodes: shape.BranchNodes,
		FreePages:   shape.FreePages,
		Cache: CacheReport{
			MaxCacheSize:      snap.MaxCacheSize,
			ResidentBuffers:   snap.ResidentBuffers,
			AvailableBuffers:  snap.AvailableBuffers,
			ActiveReads:       snap.Stats.ActiveBuffersRead,
			AvailableReads:    snap.Stats.AvailableBuffersRead,
			NeverFreeReads:    snap.Stats.NeverFreeBuffersRead,
			DiskReads:         snap.Stats.FileBuffersRead,
			DiskWrites:        snap.Stats.FileBuffersWritten,
			NewBufferRequests: snap.Stats.NewBufferRequests,
			BufferAllocs:      snap.Stats.BufferAllocs,
			NeverFreeHonored:  snap.Stats.NeverFreeHonored,
		},
	}, nil
}

// YAML renders the snapshot as a YAML document.
func (d Diagnostics) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}
