package schema

import (
	"context"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/observability"
)

// Cache holds the last loaded schema and its rendered text. A zero interval
// keeps the first successful load until Invalidate is called.
type Cache struct {
	source   Source
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	loaded   bool
	loadedAt time.Time
	schema   Schema
	text     string
}

func NewCache(source Source, interval time.Duration) *Cache {
	return &Cache{source: source, interval: interval, now: time.Now}
}

// Get returns the cached schema and its formatted text, reloading when the
// cache is empty or stale. A failed load is returned as an error and never
// served from the old copy; the next Get tries again.
func (c *Cache) Get(ctx context.Context) (Schema, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && (c.interval <= 0 || c.now().Sub(c.loadedAt) < c.interval) {
		return c.schema, c.text, nil
	}

	loaded, err := c.source.Load(ctx)
	observability.ObserveSchemaLoad(err)
	if err != nil {
		return Schema{}, "", err
	}
	c.schema = loaded
	c.text = Format(loaded)
	c.loaded = true
	c.loadedAt = c.now()
	return c.schema, c.text, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
