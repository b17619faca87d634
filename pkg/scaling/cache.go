// Package scaling implements the Scaling Substrate (component H): the
// TTL/LRU row cache, the tiered update scheduler, the batched write queue,
// the performance-sample ring, and the trie-routed event bus that the
// external-facing surfaces subscribe to. None of these concerns exist in
// the teacher's KV/Badger-oriented codebase in this shape; each file below
// is grounded on a named third-party library from the retrieval pack rather
// than on a specific teacher file, per SPEC_FULL's DOMAIN STACK.
package scaling

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// Cache is a TTL/LRU row cache backed by ristretto, with prefix-based
// invalidation for callers that cache derived views keyed like
// "agent:<id>:snapshot" and need to drop every key under "agent:<id>:" at
// once (e.g. after a reactive cycle mutates an agent's state).
type Cache struct {
	inner *ristretto.Cache[string, []byte]
	ttl   time.Duration

	mu   sync.Mutex
	keys map[string]struct{} // every key ever Set, for prefix scans
}

// NewCache constructs a Cache bounded to maxEntries with the given default
// TTL.
func NewCache(maxEntries int64, ttl time.Duration) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, apperr.Integrityf(err, "scaling: construct cache")
	}
	return &Cache{inner: inner, ttl: ttl, keys: make(map[string]struct{})}, nil
}

// Set stores value under key, msgpack-encoded, with the cache's default
// TTL.
func (c *Cache) Set(key string, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return apperr.InvalidArgumentf("scaling: encode cache value for %q: %v", key, err)
	}
	if !c.inner.SetWithTTL(key, data, 1, c.ttl) {
		return apperr.Unavailablef(nil, "scaling: cache rejected write for %q (over capacity)", key)
	}
	c.inner.Wait()
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Get decodes the cached value for key into dest, returning false if the
// key is absent or expired.
func (c *Cache) Get(key string, dest any) (bool, error) {
	data, ok := c.inner.Get(key)
	if !ok {
		return false, nil
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		return false, apperr.Integrityf(err, "scaling: decode cache value for %q", key)
	}
	return true, nil
}

// Del removes a single key.
func (c *Cache) Del(key string) {
	c.inner.Del(key)
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every key the cache has ever seen starting with
// prefix. Ristretto has no native key-iteration API, so the cache tracks
// its own key set for this purpose.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	var toDelete []string
	for k := range c.keys {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			toDelete = append(toDelete, k)
		}
	}
	for _, k := range toDelete {
		delete(c.keys, k)
	}
	c.mu.Unlock()
	for _, k := range toDelete {
		c.inner.Del(k)
	}
	return len(toDelete)
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
