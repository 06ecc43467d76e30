package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/feedcache"
	"github.com/arcazj/openbexi-earth-orbit/internal/metrics"
)

// Loader keeps a Store populated from a Fetcher, persisting every good
// download to a feed cache.
type Loader struct {
	fetcher *Fetcher
	cache   feedcache.Cache
	store   *Store
	logger  *slog.Logger
	mu      sync.Mutex // serializes refreshes
}

// NewLoader creates a Loader. cache may be nil.
func NewLoader(fetcher *Fetcher, cache feedcache.Cache, store *Store, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		store:   store,
		logger:  logger,
	}
}

// Restore loads the most recent cached copy into the store.
func (l *Loader) Restore(ctx context.Context) error {
	if l.cache == nil {
		return feedcache.ErrMiss
	}

	data, ts, err := l.cache.LoadLatest(ctx)
	if err != nil {
		return err
	}
	ds, err := parseDataset("cache", ts, data, l.logger)
	if err != nil {
		return err
	}

	l.store.Set(ds)
	metrics.SetTLEDatasetSatellites(len(ds.Satellites))
	l.logger.Info("loaded TLE data from cache", "count", len(ds.Satellites), "cached_at", ts.Format(time.RFC3339))
	return nil
}

// Refresh downloads, parses and publishes a new dataset.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ds, err := parseDataset(l.fetcher.SourceURL(), now, data, l.logger)
	if err != nil {
		return err
	}

	l.store.Set(ds)
	metrics.SetTLEDatasetSatellites(len(ds.Satellites))
	l.logger.Info("TLE dataset refreshed", "count", len(ds.Satellites), "source", ds.Source)

	if l.cache != nil {
		if err := l.cache.Write(ctx, data, now); err != nil {
			l.logger.Warn("failed to cache TLE data", "error", err)
		}
	}
	return nil
}

// Run refreshes immediately and then on every interval until ctx is done.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	if err := l.Refresh(ctx); err != nil {
		l.logger.Warn("TLE refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				l.logger.Warn("TLE refresh failed", "error", err)
			}
			if age := l.store.AgeSeconds(); age >= 0 {
				metrics.SetTLEDatasetAge(age)
			}
		case <-ctx.Done():
			return
		}
	}
}

// LoadFile parses a TLE file into a Dataset stamped with the file's
// modification time.
func LoadFile(path string, logger *slog.Logger) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	ts := time.Now().UTC()
	if info, err := os.Stat(path); err == nil {
		ts = info.ModTime().UTC()
	}
	return parseDataset(path, ts, data, logger)
}

func parseDataset(source string, ts time.Time, data []byte, logger *slog.Logger) (*Dataset, error) {
	sets, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, errors.New("TLE data contains no valid entries")
	}
	return NewDataset(source, ts, sets), nil
}
