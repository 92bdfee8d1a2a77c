// Package memory provides the in-process L1 plan cache: a sharded LRU
// with per-entry TTL. Shards keep lock contention low when many
// request goroutines hit the cache concurrently; each shard holds its
// own mutex, map and LRU list.
package memory

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultMaxEntries = 512
	defaultShards     = 16
	defaultTTL        = 30 * time.Minute
)

// Cache is a sharded, thread-safe LRU cache. It implements cache.Store.
type Cache struct {
	shards   []*shard
	mask     uint64
	perShard int
	ttl      time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

type shard struct {
	mu    sync.Mutex
	list  *list.List
	items map[string]*list.Element
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	maxEntries int
	shards     int
	ttl        time.Duration
}

// WithMaxEntries bounds the total entry count across all shards.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithShards sets the shard count, rounded up to a power of two.
func WithShards(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithDefaultTTL sets the TTL applied when Put is called with a
// non-positive ttl.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// New creates an in-process cache with the given options.
func New(opts ...Option) *Cache {
	cfg := config{
		maxEntries: defaultMaxEntries,
		shards:     defaultShards,
		ttl:        defaultTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := 1
	for n < cfg.shards {
		n <<= 1
	}
	perShard := cfg.maxEntries / n
	if perShard < 1 {
		perShard = 1
	}

	c := &Cache{
		shards:   make([]*shard, n),
		mask:     uint64(n - 1),
		perShard: perShard,
		ttl:      cfg.ttl,
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			list:  list.New(),
			items: make(map[string]*list.Element),
		}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)&c.mask]
}

// Get returns the cached value for key. Expired entries are removed
// on access and reported as misses.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	elem, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	e := elem.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		s.removeLocked(elem)
		s.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	s.list.MoveToFront(elem)
	v := e.value
	s.mu.Unlock()

	c.hits.Add(1)
	return v, true
}

// Put stores value under key, evicting the least recently used entry
// in the key's shard when the shard is full. A non-positive ttl falls
// back to the cache default.
func (c *Cache) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	expiresAt := time.Now().Add(ttl)

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		s.list.MoveToFront(elem)
		return nil
	}

	for s.list.Len() >= c.perShard {
		oldest := s.list.Back()
		if oldest == nil {
			break
		}
		s.removeLocked(oldest)
	}

	elem := s.list.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	s.items[key] = elem
	return nil
}

// Delete removes key from the cache. Deleting an absent key is a no-op.
func (c *Cache) Delete(_ context.Context, key string) error {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.removeLocked(elem)
	}
	return nil
}

// Len returns the total number of entries across all shards.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.list.Len()
		s.mu.Unlock()
	}
	return total
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (s *shard) removeLocked(elem *list.Element) {
	s.list.Remove(elem)
	delete(s.items, elem.Value.(*entry).key)
}
