package role

import "sync"

// cache is the process-wide snapshot of the vocabulary. It is populated
// lazily and invalidated synchronously after every successful mutation; a
// TTL would risk assigning a just-removed role, so there is none.
type cache struct {
	mu      sync.RWMutex
	loaded  bool
	ordered []Definition
	byName  map[string]Definition
}

func newCache() *cache {
	return &cache{byName: make(map[string]Definition)}
}

func (c *cache) get() ([]Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	out := make([]Definition, len(c.ordered))
	copy(out, c.ordered)
	return out, true
}

func (c *cache) lookup(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return Definition{}, false
	}
	def, ok := c.byName[name]
	return def, ok
}

func (c *cache) set(defs []Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ordered = make([]Definition, len(defs))
	copy(c.ordered, defs)
	c.byName = make(map[string]Definition, len(defs))
	for _, def := range defs {
		c.byName[def.Name] = def
	}
	c.loaded = true
}

func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.ordered = nil
	c.byName = make(map[string]Definition)
}

func (c *cache) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
