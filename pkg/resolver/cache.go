package resolver

import (
	"os"
	"sync"

	"github.com/golang/groupcache/lru"
)

// CachingResolver remembers the locations returned by another resolver.
// Misses are not remembered, so templates added later are still found.
type CachingResolver struct {
	inner Resolver
	cache *lru.Cache
	mu    sync.Mutex
}

// NewCachingResolver wraps inner with an LRU of at most size locations.
func NewCachingResolver(inner Resolver, size int) *CachingResolver {
	return &CachingResolver{
		inner: inner,
		cache: lru.New(size),
	}
}

// Resolve returns the cached location for name, asking the wrapped
// resolver on a miss.
func (c *CachingResolver) Resolve(name string) (string, bool) {
	c.mu.Lock()
	if v, ok := c.cache.Get(name); ok {
		c.mu.Unlock()
		return v.(string), true
	}
	c.mu.Unlock()

	location, ok := c.inner.Resolve(name)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	c.cache.Add(name, location)
	c.mu.Unlock()
	return location, true
}

// Load reads a location through the wrapped resolver when it is a loader,
// otherwise from disk.
func (c *CachingResolver) Load(location string) (string, error) {
	if l, ok := c.inner.(interface {
		Load(string) (string, error)
	}); ok {
		return l.Load(location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// AddTemplatePath forwards to the wrapped resolver and drops cached
// locations, since the new directory may shadow them.
func (c *CachingResolver) AddTemplatePath(path string) {
	if pr, ok := c.inner.(interface{ AddTemplatePath(string) }); ok {
		pr.AddTemplatePath(path)
	}
	c.Purge()
}

// SetSuffix forwards to the wrapped resolver and drops cached locations.
func (c *CachingResolver) SetSuffix(suffix string) {
	if pr, ok := c.inner.(interface{ SetSuffix(string) }); ok {
		pr.SetSuffix(suffix)
	}
	c.Purge()
}

// Suffix returns the wrapped resolver's suffix, if it has one.
func (c *CachingResolver) Suffix() string {
	if pr, ok := c.inner.(interface{ Suffix() string }); ok {
		return pr.Suffix()
	}
	return ""
}

// Purge empties the location cache.
func (c *CachingResolver) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}

// Len returns the number of cached locations.
func (c *CachingResolver) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
