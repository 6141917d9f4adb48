package session

import (
	"maps"
	"sync"
)

// Cache maps tool ids to backend session ids for the life of one process.
// It is never persisted.
type Cache struct {
	mu       sync.Mutex
	sessions map[int]string
}

func NewCache() *Cache {
	return &Cache{sessions: make(map[int]string)}
}

func (c *Cache) Get(toolID int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.sessions[toolID]
	return id, ok
}

func (c *Cache) Put(toolID int, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[toolID] = sessionID
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.sessions)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Cache) Snapshot() map[int]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.sessions)
}
