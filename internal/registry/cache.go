package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arcazj/openbexi-earth-orbit/internal/metrics"
)

// loadTimeout bounds one shared fetch. The fetch outlives the caller that
// started it, so it cannot rely on that caller's deadline.
const loadTimeout = 2 * time.Minute

// Cache memoizes the registry built from a Source.
//
// Create one per process and share it. Concurrent Load calls share a single
// in-flight fetch and its outcome. A successful load is kept until
// Invalidate. A failed load ends its cycle: the callers that shared it see
// nil, and the next Load fetches again.
type Cache struct {
	source Source
	logger *slog.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	done       bool
	current    *Registry
	generation uint64
}

// NewCache creates a Cache reading from source.
func NewCache(source Source, logger *slog.Logger) *Cache {
	return &Cache{source: source, logger: logger}
}

// Load returns the registry, fetching it on first use. A nil result means
// no authoritative data is available; it is never an error to the caller.
// A nil Cache always loads nothing.
func (c *Cache) Load(ctx context.Context) *Registry {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	if c.done {
		reg := c.current
		c.mu.RUnlock()
		return reg
	}
	gen := c.generation
	c.mu.RUnlock()

	v, _, _ := c.group.Do("registry", func() (any, error) {
		c.mu.RLock()
		if c.done && c.generation == gen {
			reg := c.current
			c.mu.RUnlock()
			return reg, nil
		}
		c.mu.RUnlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		reg := c.fetch(fetchCtx)

		c.mu.Lock()
		defer c.mu.Unlock()
		// An Invalidate while fetching makes this result stale.
		if reg != nil && c.generation == gen {
			c.current = reg
			c.done = true
		}
		return reg, nil
	})
	return v.(*Registry)
}

// Get returns the cached registry without loading. Nil when absent or not
// loaded yet.
func (c *Cache) Get() *Registry {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Loaded reports whether a load has succeeded since the last Invalidate.
func (c *Cache) Loaded() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Invalidate drops the cached result so the next Load fetches again.
func (c *Cache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.done = false
	c.current = nil
	c.generation++
	c.mu.Unlock()
	c.group.Forget("registry")
}

func (c *Cache) fetch(ctx context.Context) *Registry {
	start := time.Now()

	data, err := c.source.Fetch(ctx)
	if err != nil {
		c.logger.Error("failed to load confirmed decay data", "source", c.source.Name(), "error", err)
		metrics.RecordRegistryLoad("error", 0)
		return nil
	}

	records, err := Decode(data, c.logger)
	if err != nil {
		c.logger.Error("failed to parse confirmed decay data", "source", c.source.Name(), "error", err)
		metrics.RecordRegistryLoad("error", 0)
		return nil
	}

	reg := Build(c.source.Name(), records)
	metrics.RecordRegistryLoad("ok", reg.Len())
	c.logger.Info("confirmed decay registry loaded",
		"source", c.source.Name(),
		"records", len(records),
		"catalog_ids", reg.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reg
}
