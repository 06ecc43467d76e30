// Package service classifies the current element-set dataset and keeps the
// latest result available to readers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
	"github.com/arcazj/openbexi-earth-orbit/internal/metrics"
	"github.com/arcazj/openbexi-earth-orbit/internal/propagation"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

var (
	// ErrNotFound is returned for catalog ids absent from the snapshot.
	ErrNotFound = errors.New("catalog id not in snapshot")
	// ErrNoSnapshot is returned before the first snapshot is built.
	ErrNoSnapshot = errors.New("no classification snapshot yet")
	// ErrRegistryUnavailable is returned when the registry could not be loaded.
	ErrRegistryUnavailable = errors.New("confirmed decay registry unavailable")
)

// Config controls snapshot rebuilding.
type Config struct {
	// Options is the estimator template. Now and ConfirmedDecays are set
	// per run.
	Options decay.Options
	// Interval rebuilds the snapshot periodically even without new data.
	Interval time.Duration
	// PollInterval is how often Start checks for a replaced dataset.
	PollInterval time.Duration
}

// Service owns the classification snapshot.
type Service struct {
	cfg       Config
	store     *tle.Store
	catalog   *propagation.Catalog
	registry  *registry.Cache
	estimator *decay.Estimator
	logger    *slog.Logger

	latest atomic.Pointer[Snapshot]

	mu               sync.Mutex // serializes rebuilds
	currentFetchedAt time.Time
}

// New creates a Service.
func New(cfg Config, store *tle.Store, reg *registry.Cache, logger *slog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		catalog:   propagation.NewCatalog(logger),
		registry:  reg,
		estimator: decay.NewEstimator(logger),
		logger:    logger,
	}
}

// Classify runs the estimator over every object of the current dataset at
// now. The result is not published; use Refresh for that.
func (s *Service) Classify(ctx context.Context, now time.Time) (*Snapshot, error) {
	ds := s.store.Get()
	if ds == nil {
		return nil, tle.ErrNoDataset
	}
	return s.classify(ctx, ds, now), nil
}

func (s *Service) classify(ctx context.Context, ds *tle.Dataset, now time.Time) *Snapshot {
	start := time.Now()
	reg := s.registry.Load(ctx)
	props := s.catalog.For(ds)

	sats := make([]*decay.Satellite, 0, len(ds.Satellites))
	names := make([]string, 0, len(ds.Satellites))
	seen := make(map[string]bool, len(ds.Satellites))
	for _, set := range ds.Satellites {
		if seen[set.CatalogID] {
			continue
		}
		seen[set.CatalogID] = true

		sat := &decay.Satellite{CatalogID: set.CatalogID}
		// A nil *SGP4Propagator must not become a non-nil interface.
		if p, ok := props[set.CatalogID]; ok {
			sat.Propagator = p
		}
		sats = append(sats, sat)
		names = append(names, set.Name)
	}

	opts := s.cfg.Options
	opts.Now = now
	opts.ConfirmedDecays = reg
	s.estimator.Classify(sats, opts)

	snap := newSnapshot(uuid.NewString(), now, ds, reg)
	for i, sat := range sats {
		snap.add(Result{CatalogID: sat.CatalogID, Name: names[i], Decay: sat.Decay})
	}

	duration := time.Since(start)
	metrics.ObserveSnapshot(duration)
	s.logger.Info("classification complete",
		"run_id", snap.RunID,
		"satellites", len(sats),
		"registry_records", reg.Len(),
		"duration_ms", duration.Milliseconds(),
	)
	return snap
}

// Refresh classifies at the current time and publishes the snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) error {
	ds := s.store.Get()
	if ds == nil {
		return tle.ErrNoDataset
	}
	s.latest.Store(s.classify(ctx, ds, time.Now()))
	s.currentFetchedAt = ds.FetchedAt
	return nil
}

// Latest returns the published snapshot, or nil before the first one.
func (s *Service) Latest() *Snapshot {
	return s.latest.Load()
}

// Ready reports whether a snapshot has been published.
func (s *Service) Ready() bool {
	return s.latest.Load() != nil
}

// Lookup returns one object's result from the published snapshot.
func (s *Service) Lookup(catalogID string) (Result, error) {
	snap := s.latest.Load()
	if snap == nil {
		return Result{}, ErrNoSnapshot
	}
	r, ok := snap.Lookup(catalogID)
	if !ok {
		return Result{}, ErrNotFound
	}
	return r, nil
}

// RegistryRecord returns the confirmed re-entry for a catalog id.
func (s *Service) RegistryRecord(ctx context.Context, catalogID string) (registry.Record, error) {
	reg := s.registry.Load(ctx)
	if reg == nil {
		return registry.Record{}, ErrRegistryUnavailable
	}
	rec, ok := reg.Lookup(catalogID)
	if !ok {
		return registry.Record{}, registry.ErrNotFound
	}
	return rec, nil
}

// ReloadRegistry drops the cached registry, loads it again and rebuilds the
// snapshot when a dataset is available. It returns the number of catalog
// ids loaded.
func (s *Service) ReloadRegistry(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Invalidate()
	reg := s.registry.Load(ctx)
	if reg == nil {
		return 0, ErrRegistryUnavailable
	}

	if err := s.refreshLocked(ctx); err != nil && !errors.Is(err, tle.ErrNoDataset) {
		return reg.Len(), err
	}
	return reg.Len(), nil
}

// Start waits for a dataset, builds the first snapshot, then rebuilds it
// whenever the dataset is replaced and every Interval. Blocks until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	if !s.waitForDataset(ctx) {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial classification failed", "error", err)
	}

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	rebuild := time.NewTicker(s.cfg.Interval)
	defer rebuild.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot builder stopped")
			return
		case <-poll.C:
			if s.datasetChanged() {
				s.logger.Info("TLE dataset replaced, rebuilding snapshot")
				if err := s.Refresh(ctx); err != nil {
					s.logger.Warn("classification failed", "error", err)
				}
			}
		case <-rebuild.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("classification failed", "error", err)
			}
		}
	}
}

// datasetChanged reports whether the store holds a dataset other than the
// one the published snapshot was built from.
func (s *Service) datasetChanged() bool {
	ds := s.store.Get()
	if ds == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !ds.FetchedAt.Equal(s.currentFetchedAt)
}

func (s *Service) waitForDataset(ctx context.Context) bool {
	if s.store.Get() != nil {
		return true
	}

	s.logger.Info("snapshot builder waiting for TLE data...")
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if s.store.Get() != nil {
				return true
			}
		}
	}
}
