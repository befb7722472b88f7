package digest

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/bayleafwalker/schemagraph/schema"
)

// DefaultCacheEntries bounds a cache created with a non-positive size.
const DefaultCacheEntries = 4096

// VersionedSource is an InstanceSource that also reports a version for each
// live instance. The version must change whenever the instance changes.
type VersionedSource interface {
	InstanceSource
	Version(id schema.Uid) (uint64, bool)
}

type cacheKey struct {
	revision schema.Uid
	id       schema.Uid
	version  uint64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.revision, k.id, k.version)
}

type cacheEntry struct {
	key    cacheKey
	digest InstanceDigest
}

// CacheStats counts cache activity since creation.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// Cache memoizes instance digests by (schema revision, instance id, instance
// version) with LRU eviction. Concurrent misses on the same key compute once.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*list.Element
	lru     *list.List
	max     int
	flight  singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		entries: map[cacheKey]*list.Element{},
		lru:     list.New(),
		max:     maxEntries,
	}
}

// OfInstance returns the digest of instance id, computing it on a miss. The
// result is a private copy.
func (c *Cache) OfInstance(s *schema.Schema, src VersionedSource, id schema.Uid) (InstanceDigest, error) {
	key := cacheKey{revision: s.Revision(), id: id}
	if src != nil {
		if v, ok := src.Version(id); ok {
			key.version = v
		}
	}
	if d, ok := c.get(key); ok {
		c.hits.Add(1)
		return d.Clone(), nil
	}
	c.misses.Add(1)

	v, err, _ := c.flight.Do(key.String(), func() (any, error) {
		d, err := OfInstance(s, src, id)
		if err != nil {
			return nil, err
		}
		c.put(key, d)
		return d, nil
	})
	if err != nil {
		return InstanceDigest{}, err
	}
	return v.(InstanceDigest).Clone(), nil
}

// IsFulfilled is the cached counterpart of the package-level IsFulfilled.
func (c *Cache) IsFulfilled(s *schema.Schema, src VersionedSource, id schema.Uid) (bool, error) {
	d, err := c.OfInstance(s, src, id)
	if err != nil {
		return false, err
	}
	return Check(d).OK(), nil
}

func (c *Cache) get(key cacheKey) (InstanceDigest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return InstanceDigest{}, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*cacheEntry).digest, true
}

func (c *Cache) put(key cacheKey, d InstanceDigest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, digest: d})
	for c.lru.Len() > c.max {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.evictions.Add(1)
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[cacheKey]*list.Element{}
	c.lru.Init()
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	n := c.lru.Len()
	c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   n,
	}
}
