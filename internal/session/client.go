package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/pkg/models"
)

// Creator opens a fresh backend session for a tool namespace.
type Creator interface {
	CreateSession(ctx context.Context, slug string) (string, error)
}

type Client struct {
	api    Creator
	cache  *Cache
	logger *log.Logger

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewClient(api Creator, cache *Cache, logger *log.Logger) *Client {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		api:    api,
		cache:  cache,
		logger: logger.With("component", "session"),
		locks:  make(map[int]*sync.Mutex),
	}
}

func (c *Client) Cache() *Cache {
	return c.cache
}

// Create always opens a new session and caches it for the tool. Nothing is
// cached when creation fails.
func (c *Client) Create(ctx context.Context, tool *models.Tool) (string, error) {
	id, err := c.api.CreateSession(ctx, tool.Slug)
	if err != nil {
		c.logger.Error("session creation failed", "tool", tool.Slug, "err", err)
		return "", fmt.Errorf("%w: %s: %w", models.ErrSessionCreation, tool.Slug, err)
	}
	if id == "" {
		c.logger.Error("session creation returned no id", "tool", tool.Slug)
		return "", fmt.Errorf("%w: %s: empty session id", models.ErrSessionCreation, tool.Slug)
	}
	c.cache.Put(tool.ID, id)
	c.logger.Info("session created", "tool", tool.Slug, "session", id)
	return id, nil
}

func (c *Client) Resume(tool *models.Tool) (string, bool) {
	return c.cache.Get(tool.ID)
}

// Ensure returns the tool's cached session, creating one when none exists.
// Concurrent callers for the same tool share a single creation.
func (c *Client) Ensure(ctx context.Context, tool *models.Tool) (string, error) {
	if id, ok := c.Resume(tool); ok {
		return id, nil
	}

	lock := c.toolLock(tool.ID)
	lock.Lock()
	defer lock.Unlock()

	if id, ok := c.Resume(tool); ok {
		return id, nil
	}
	return c.Create(ctx, tool)
}

func (c *Client) toolLock(toolID int) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[toolID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[toolID] = l
	}
	return l
}
