package plugraph

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CacheConfig sizes a Cache. Zero fields take their value from
// DefaultCacheConfig.
type CacheConfig struct {
	// HashEntries bounds the number of memoised hashes.
	HashEntries int
	// ValueEntries bounds the number of memoised values.
	ValueEntries int
	// Shards is the number of independently locked partitions of each memo.
	Shards int
}

var DefaultCacheConfig = CacheConfig{
	HashEntries:  1 << 16,
	ValueEntries: 1 << 14,
	Shards:       16,
}

// A Cache memoises plug hashes and values, and deduplicates concurrent
// computations of the same value. A Cache is safe for concurrent use and may be
// shared by several graphs.
//
// Hashes are keyed by plug, context hash and the plug's dirty count, so a
// dirtied plug never serves a stale hash. Values are keyed by plug and context
// hash and stored alongside the hash they were computed for; a lookup is a hit
// only when the stored hash equals the current one. Entries are evicted in
// least-recently-used order within each shard; eviction only ever costs a
// recomputation.
type Cache struct {
	hashes *shardedLRU[hashKey, Hash]
	values *shardedLRU[valueKey, valueEntry]
	flight singleflight.Group

	hits         atomic.Uint64
	misses       atomic.Uint64
	computes     atomic.Uint64
	hashComputes atomic.Uint64
}

type hashKey struct {
	plug    uint64
	context Hash
	dirty   uint64
}

func (k hashKey) shard() uint64 { return shardOf(k.plug, k.context) }

type valueKey struct {
	plug    uint64
	context Hash
}

func (k valueKey) shard() uint64 { return shardOf(k.plug, k.context) }

type valueEntry struct {
	hash  Hash
	value any
}

func shardOf(plug uint64, context Hash) uint64 {
	var buf [8 + len(Hash{})]byte
	binary.LittleEndian.PutUint64(buf[:8], plug)
	copy(buf[8:], context[:])
	return xxhash.Sum64(buf[:])
}

// flightKey identifies a computation: equal hashes of one plug compute equal
// values, whatever the contexts they were requested under.
func flightKey(plug uint64, h Hash) string {
	var buf [8 + len(Hash{})]byte
	binary.LittleEndian.PutUint64(buf[:8], plug)
	copy(buf[8:], h[:])
	return string(buf[:])
}

// NewCache returns an empty Cache sized by cfg. It panics if any size in cfg is
// negative.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.HashEntries < 0 || cfg.ValueEntries < 0 || cfg.Shards < 0 {
		panic(fmt.Sprintf("plugraph.NewCache: negative size in %+v", cfg))
	}
	if cfg.HashEntries == 0 {
		cfg.HashEntries = DefaultCacheConfig.HashEntries
	}
	if cfg.ValueEntries == 0 {
		cfg.ValueEntries = DefaultCacheConfig.ValueEntries
	}
	if cfg.Shards == 0 {
		cfg.Shards = DefaultCacheConfig.Shards
	}
	return &Cache{
		hashes: newShardedLRU[hashKey, Hash](cfg.Shards, cfg.HashEntries),
		values: newShardedLRU[valueKey, valueEntry](cfg.Shards, cfg.ValueEntries),
	}
}

// CacheStats is a snapshot of a Cache's counters.
type CacheStats struct {
	// Hits and Misses count value lookups.
	Hits, Misses uint64
	// Computes counts calls to Node.Compute, HashComputes calls to node hash
	// functions. Neither counts cached or deduplicated work.
	Computes, HashComputes uint64
	// HashEntries and ValueEntries count the currently memoised entries.
	HashEntries, ValueEntries int
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computes:     c.computes.Load(),
		HashComputes: c.hashComputes.Load(),
		HashEntries:  c.hashes.Len(),
		ValueEntries: c.values.Len(),
	}
}

// Purge drops every memoised hash and value. Counters are left untouched.
func (c *Cache) Purge() {
	c.hashes.Purge()
	c.values.Purge()
}

// forget drops the entries of the given plugs, which no longer belong to any
// graph.
func (c *Cache) forget(plugs []uint64) {
	if len(plugs) == 0 {
		return
	}
	c.hashes.RemoveFunc(func(k hashKey) bool { return slices.Contains(plugs, k.plug) })
	c.values.RemoveFunc(func(k valueKey) bool { return slices.Contains(plugs, k.plug) })
}

type shardKey interface {
	comparable
	shard() uint64
}

type shardedLRU[K shardKey, V any] struct {
	shards []*lru.Cache[K, V]
}

func newShardedLRU[K shardKey, V any](shards, size int) *shardedLRU[K, V] {
	perShard := max(size/shards, 1)
	s := &shardedLRU[K, V]{shards: make([]*lru.Cache[K, V], shards)}
	for i := range s.shards {
		c, err := lru.New[K, V](perShard)
		if err != nil {
			// lru.New fails on non-positive sizes only.
			panic("plugraph: " + err.Error())
		}
		s.shards[i] = c
	}
	return s
}

func (s *shardedLRU[K, V]) of(k K) *lru.Cache[K, V] {
	return s.shards[k.shard()%uint64(len(s.shards))]
}

func (s *shardedLRU[K, V]) Get(k K) (V, bool) { return s.of(k).Get(k) }
func (s *shardedLRU[K, V]) Add(k K, v V)      { s.of(k).Add(k, v) }

func (s *shardedLRU[K, V]) Len() int {
	n := 0
	for _, c := range s.shards {
		n += c.Len()
	}
	return n
}

func (s *shardedLRU[K, V]) Purge() {
	for _, c := range s.shards {
		c.Purge()
	}
}

func (s *shardedLRU[K, V]) RemoveFunc(match func(K) bool) {
	for _, c := range s.shards {
		for _, k := range c.Keys() {
			if match(k) {
				c.Remove(k)
			}
		}
	}
}
