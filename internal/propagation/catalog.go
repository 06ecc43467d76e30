package propagation

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

// catalogEntry holds the propagators built for one dataset. Immutable after
// construction.
type catalogEntry struct {
	dataset *tle.Dataset
	props   map[string]*SGP4Propagator
}

// Catalog builds SGP4 propagators once per dataset and reuses them until
// the dataset is replaced.
type Catalog struct {
	logger  *slog.Logger
	current atomic.Pointer[catalogEntry]
	mu      sync.Mutex // serializes rebuilds
}

// NewCatalog creates an empty Catalog.
func NewCatalog(logger *slog.Logger) *Catalog {
	return &Catalog{logger: logger}
}

// For returns the propagators for ds keyed by catalog id. Element sets that
// SGP4 cannot initialise are absent from the map.
func (c *Catalog) For(ds *tle.Dataset) map[string]*SGP4Propagator {
	if e := c.current.Load(); e != nil && e.dataset == ds {
		return e.props
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.current.Load(); e != nil && e.dataset == ds {
		return e.props
	}

	props := make(map[string]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, set := range ds.Satellites {
		if _, ok := props[set.CatalogID]; ok {
			continue
		}
		p, err := NewSGP4Propagator(set)
		if err != nil {
			c.logger.Warn("sgp4 init failed", "catalog_id", set.CatalogID, "error", err)
			skipped++
			continue
		}
		props[set.CatalogID] = p
	}

	c.logger.Info("sgp4 propagator catalog rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	c.current.Store(&catalogEntry{dataset: ds, props: props})
	return props
}
