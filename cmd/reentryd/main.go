package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/api"
	"github.com/arcazj/openbexi-earth-orbit/internal/auth"
	"github.com/arcazj/openbexi-earth-orbit/internal/config"
	"github.com/arcazj/openbexi-earth-orbit/internal/feedcache"
	"github.com/arcazj/openbexi-earth-orbit/internal/metrics"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/service"
	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tleCache, decayCache := newFeedCaches(ctx, cfg, logger)

	store := tle.NewStore()
	loader := tle.NewLoader(tle.NewFetcher(cfg.TLESourceURL, logger, cfg.TLEExtraURLs...), tleCache, store, logger)

	if cfg.TLEFile != "" {
		ds, err := tle.LoadFile(cfg.TLEFile, logger)
		if err != nil {
			logger.Error("failed to load TLE file", "path", cfg.TLEFile, "error", err)
			os.Exit(1)
		}
		store.Set(ds)
		metrics.SetTLEDatasetSatellites(len(ds.Satellites))
		logger.Info("loaded TLE file", "path", cfg.TLEFile, "count", len(ds.Satellites))
	} else if err := loader.Restore(ctx); err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	}

	source := registry.NewCachedSource(registry.NewSource(cfg.DecayFeed), decayCache, logger)
	svc := service.New(service.Config{
		Options:  cfg.DecayOptions(),
		Interval: cfg.SnapshotInterval,
	}, store, registry.NewCache(source, logger), logger)

	srv := api.NewServer(api.Config{
		Addr:       cfg.Addr,
		Auth:       auth.Config{Enabled: cfg.AuthEnabled, Token: cfg.AuthToken},
		TrustProxy: cfg.TrustProxy,
	}, svc, logger)

	if cfg.TLEEnableFetch {
		go loader.Run(ctx, cfg.TLERefreshInterval)
	}
	go svc.Start(ctx)

	go func() {
		logger.Info("starting server",
			"addr", cfg.Addr,
			"auth_enabled", cfg.AuthEnabled,
			"tle_fetch_enabled", cfg.TLEEnableFetch,
			"decay_feed", cfg.DecayFeed,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newFeedCaches returns Redis-backed caches when redis_url is set and
// reachable, disk caches otherwise.
func newFeedCaches(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tleCache, decayCache feedcache.Cache) {
	if cfg.RedisURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client, err := feedcache.Dial(dialCtx, cfg.RedisURL)
		if err == nil {
			logger.Info("using redis feed cache")
			return feedcache.NewRedis(client, "reentry:feed:tle", 0),
				feedcache.NewRedis(client, "reentry:feed:decayed", 0)
		}
		logger.Warn("redis unavailable, falling back to disk feed cache", "error", err)
	}

	logger.Info("using disk feed cache", "dir", cfg.FeedCacheDir, "max_files", cfg.FeedCacheMaxFiles)
	return feedcache.NewDisk(cfg.FeedCacheDir, "tle", "txt", cfg.FeedCacheMaxFiles),
		feedcache.NewDisk(cfg.FeedCacheDir, "decayed", "json", cfg.FeedCacheMaxFiles)
}
