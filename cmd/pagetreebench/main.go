// Command pagetreebench drives a pagetree container with a synthetic
// workload and prints a timing and cache report, for eyeballing the
// effect of page size, cache bounds, eviction policy, and insert order
// (the pack optimization shows up directly in the node census).
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ngina-wtf/pagetree/container"
)

func main() {
	var (
		path     = flag.String("file", "bench.pgt", "container file path (truncated)")
		n        = flag.Int("n", 100000, "number of keys to insert")
		pageSize = flag.Uint("page-size", 4096, "page size in bytes")
		cacheSz  = flag.Int64("cache", -1, "max cached pages (-1 = unbounded)")
		shuffle  = flag.Bool("shuffle", false, "insert keys in random order instead of ascending")
		lruK     = flag.Int("lru-k", 0, "use LRU-K eviction with this k (0 = plain LRU)")
		seed     = flag.Int64("seed", 1, "shuffle seed")
		dump     = flag.Bool("dump", false, "print the YAML diagnostics snapshot")
	)
	flag.Parse()

	opts := []container.Option{
		container.WithPageSize(uint32(*pageSize)),
		container.WithMaxCacheSize(*cacheSz),
		container.WithFlags(container.Truncate),
		container.WithLabel("pagetreebench"),
	}
	if *lruK > 1 {
		opts = append(opts, container.WithLruK(*lruK))
	}

	s, err := container.OpenSet(*path, container.Uint64Codec(), container.OrderedCompare[uint64](), opts...)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer s.Close()

	keys := make([]uint64, *n)
	for i := range keys {
		keys[i] = uint64(i)
	}
	if *shuffle {
		rng := rand.New(rand.NewSource(*seed))
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	start := time.Now()
	for _, k := range keys {
		it, _, err := s.Insert(k)
		if err != nil {
			log.Fatalf("insert %d: %v", k, err)
		}
		it.Release()
	}
	insertDur := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		it, err := s.Find(k)
		if err != nil {
			log.Fatalf("find %d: %v", k, err)
		}
		if it.IsEnd() {
			log.Fatalf("find %d: missing", k)
		}
		it.Release()
	}
	findDur := time.Since(start)

	if err := s.Flush(); err != nil {
		log.Fatalf("flush: %v", err)
	}

	d, err := s.Diagnostics()
	if err != nil {
		log.Fatalf("diagnostics: %v", err)
	}
	st, err := os.Stat(*path)
	if err != nil {
		log.Fatalf("stat: %v", err)
	}

	perSec := func(dur time.Duration) string {
		return humanize.Comma(int64(float64(*n) / dur.Seconds()))
	}
	fmt.Printf("inserted %s keys in %v (%s/s)\n", humanize.Comma(int64(*n)), insertDur.Round(time.Millisecond), perSec(insertDur))
	fmt.Printf("found    %s keys in %v (%s/s)\n", humanize.Comma(int64(*n)), findDur.Round(time.Millisecond), perSec(findDur))
	fmt.Printf("file: %s (%s), %d-byte pages\n", *path, humanize.IBytes(uint64(st.Size())), d.NodeSize)
	fmt.Printf("tree: %d levels, %s leaves, %s branches, %s free pages\n",
		int(d.RootLevel)+1, humanize.Comma(int64(d.LeafNodes)), humanize.Comma(int64(d.BranchNodes)),
		humanize.Comma(int64(d.FreePages)))
	fmt.Printf("cache: %d resident, %d available (target %d); %s disk reads, %s disk writes\n",
		d.Cache.ResidentBuffers, d.Cache.AvailableBuffers, d.Cache.MaxCacheSize,
		humanize.Comma(int64(d.Cache.DiskReads)), humanize.Comma(int64(d.Cache.DiskWrites)))

	if *dump {
		out, err := d.YAML()
		if err != nil {
			log.Fatalf("yaml: %v", err)
		}
		os.Stdout.Write(out)
	}
}
