package mustache

import "sync"

// cacheEntry is either raw template content that has been fetched but not
// compiled yet, or compiled tokens. Consumers switch on the concrete type.
type cacheEntry interface {
	isCacheEntry()
}

type rawEntry struct {
	content string
}

type compiledEntry struct {
	tokens Tokens
}

func (rawEntry) isCacheEntry()      {}
func (compiledEntry) isCacheEntry() {}

// templateCache is the shared name/alias namespace of a coordinator.
// Entries are only ever replaced, never removed, except by restore.
type templateCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newTemplateCache() *templateCache {
	return &templateCache{entries: make(map[string]cacheEntry)}
}

func (c *templateCache) get(name string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

func (c *templateCache) storeRaw(name, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = rawEntry{content: content}
}

func (c *templateCache) storeCompiled(name string, tokens Tokens) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = compiledEntry{tokens: tokens}
}

// snapshot returns every compiled entry. Raw entries are left out; they are
// re-fetched on demand by the receiving instance.
func (c *templateCache) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(Snapshot, len(c.entries))
	for name, e := range c.entries {
		if ce, ok := e.(compiledEntry); ok {
			out[name] = ce.tokens
		}
	}
	return out
}

func (c *templateCache) restore(s Snapshot) {
	entries := make(map[string]cacheEntry, len(s))
	for name, tokens := range s {
		entries[name] = compiledEntry{tokens: tokens}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
}

func (c *templateCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
