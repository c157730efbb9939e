package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go-auth-service/internal/model"
)

// UserCache is a read-through side-channel for user lookups. Implementations
// must be safe for concurrent use. A disabled cache is expressed by Noop so
// callers never branch on nil.
type UserCache interface {
	Get(key string) (model.User, bool)
	Set(key string, user model.User)
	Delete(key string)
}

type entry struct {
	user      model.User
	expiresAt time.Time
}

// Memory is an in-process UserCache with a fixed TTL per entry.
type Memory struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Memory{
		ttl:     ttl,
		entries: map[string]entry{},
	}
}

func (c *Memory) Get(key string) (model.User, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return model.User{}, false
	}

	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return model.User{}, false
	}

	return e.user, true
}

func (c *Memory) Set(key string, user model.User) {
	c.mu.Lock()
	c.entries[key] = entry{user: user, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Memory) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// StartEvictionTicker sweeps expired entries until ctx is cancelled.
func (c *Memory) StartEvictionTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := c.evictExpired()
			if removed > 0 {
				slog.Debug("user cache eviction", "removed", removed)
			}
		}
	}
}

func (c *Memory) evictExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// Noop is the cache-disabled pass-through.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(string) (model.User, bool) { return model.User{}, false }

func (Noop) Set(string, model.User) {}

func (Noop) Delete(string) {}
