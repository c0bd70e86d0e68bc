package text

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"sync"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/hash"
)

// Cache is an LRU cache of normalized text keyed by the hash of the raw
// text. It is safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	cache       map[string]string
	maxSize     int
	order       []string // LRU order, oldest first
	hits        int
	misses      int
	persistPath string
}

// NewCache creates a cache holding at most maxSize entries.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}

	return &Cache{
		cache:   make(map[string]string),
		maxSize: maxSize,
		order:   make([]string, 0, maxSize),
	}
}

// Get returns the cached normalization of text.
func (c *Cache) Get(text string) (string, bool) {
	key := hash.SHA256String(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	normalized, ok := c.cache[key]
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	c.moveToEnd(key)
	return normalized, true
}

// Set stores the normalization of text, evicting the least recently used
// entry when full.
func (c *Cache) Set(text, normalized string) {
	c.setKey(hash.SHA256String(text), normalized)
}

func (c *Cache) setKey(key, normalized string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; exists {
		c.cache[key] = normalized
		c.moveToEnd(key)
		return
	}

	for len(c.cache) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}

	c.cache[key] = normalized
	c.order = append(c.order, key)
}

// moveToEnd marks key as most recently used (must hold lock).
func (c *Cache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Clear empties the cache and resets its counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]string)
	c.order = make([]string, 0, c.maxSize)
	c.hits, c.misses = 0, 0
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"max_size"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:    len(c.cache),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// SetPersistPath sets the file used by Flush and Load.
func (c *Cache) SetPersistPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistPath = path
}

type cacheEntry struct {
	Key        string `json:"key"`
	Normalized string `json:"normalized"`
}

// Flush writes the entries to the persist path, oldest first. It is a
// no-op when no path is set or the cache is empty.
func (c *Cache) Flush() error {
	c.mu.Lock()
	persistPath := c.persistPath
	entries := make([]cacheEntry, len(c.order))
	for i, key := range c.order {
		entries[i] = cacheEntry{Key: key, Normalized: c.cache[key]}
	}
	c.mu.Unlock()

	if persistPath == "" || len(entries) == 0 {
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return errors.InternalError("failed to encode normalization cache", err)
	}
	if err := writeAtomic(persistPath, data); err != nil {
		return errors.StorageError("failed to write normalization cache", err)
	}
	return nil
}

// Load restores entries written by Flush. A missing file is not an error.
func (c *Cache) Load() error {
	c.mu.Lock()
	persistPath := c.persistPath
	c.mu.Unlock()

	if persistPath == "" {
		return nil
	}

	data, err := os.ReadFile(persistPath)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.StorageError("failed to read normalization cache", err)
	}

	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(errors.CodeValidation, "normalization cache file is corrupt", err)
	}
	for _, e := range entries {
		c.setKey(e.Key, e.Normalized)
	}
	return nil
}

// CachedNormalizer memoizes a Normalizer.
type CachedNormalizer struct {
	*Normalizer
	cache *Cache
}

// NewCachedNormalizer wraps n with cache. A nil cache disables memoization.
func NewCachedNormalizer(n *Normalizer, cache *Cache) *CachedNormalizer {
	return &CachedNormalizer{Normalizer: n, cache: cache}
}

// Cache returns the underlying cache, which may be nil.
func (n *CachedNormalizer) Cache() *Cache {
	return n.cache
}

// Normalize returns the cached normalization of text, computing it on a
// miss.
func (n *CachedNormalizer) Normalize(text string) string {
	if n.cache == nil {
		return n.Normalizer.Normalize(text)
	}
	if normalized, ok := n.cache.Get(text); ok {
		return normalized
	}
	normalized := n.Normalizer.Normalize(text)
	n.cache.Set(text, normalized)
	return normalized
}

// NormalizeAll normalizes every element of texts through the cache.
func (n *CachedNormalizer) NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}
