package translation

import "sync"

// Key identifies one memoized translation. No normalization is applied:
// different whitespace or casing is a different key.
type Key struct {
	Text   string
	Target string
}

// Cache memoizes translations for the lifetime of a session.
// It never evicts; growth is bounded by what one user translates.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[Key]string)}
}

func (c *Cache) Lookup(text, target string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[Key{Text: text, Target: target}]
	return v, ok
}

// Store records a translation. Storing the same pair again overwrites it.
func (c *Cache) Store(text, target, translated string) {
	c.mu.Lock()
	c.entries[Key{Text: text, Target: target}] = translated
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
