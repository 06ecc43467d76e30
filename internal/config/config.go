// Package config defines service configuration and its layered loader.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr       string `koanf:"addr"`
	TrustProxy bool   `koanf:"trust_proxy"`

	AuthEnabled bool   `koanf:"auth_enabled"`
	AuthToken   string `koanf:"auth_token"`

	// TLEFile, when set, is loaded at startup instead of waiting for a fetch.
	TLEFile            string        `koanf:"tle_file"`
	TLEEnableFetch     bool          `koanf:"tle_enable_fetch"`
	TLESourceURL       string        `koanf:"tle_source_url"`
	TLEExtraURLs       []string      `koanf:"tle_extra_urls"`
	TLERefreshInterval time.Duration `koanf:"tle_refresh_interval"`

	// DecayFeed is the confirmed-decay feed, a URL or a file path.
	DecayFeed string `koanf:"decay_feed"`

	// FeedCacheDir holds last-good feed copies when RedisURL is empty.
	FeedCacheDir      string `koanf:"feed_cache_dir"`
	FeedCacheMaxFiles int    `koanf:"feed_cache_max_files"`
	RedisURL          string `koanf:"redis_url"`

	SnapshotInterval time.Duration `koanf:"snapshot_interval"`
	ClassifyWorkers  int           `koanf:"classify_workers"`

	ReentryAltitudeKm     float64 `koanf:"reentry_altitude_km"`
	CoarseAltitudeKm      float64 `koanf:"coarse_altitude_km"`
	BacktrackDays         float64 `koanf:"backtrack_days"`
	PredictionHorizonDays float64 `koanf:"prediction_horizon_days"`
	StepMinutes           float64 `koanf:"step_minutes"`
	BacktrackStepMinutes  float64 `koanf:"backtrack_step_minutes"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":8080",
		TLEEnableFetch: true,
		TLEExtraURLs: []string{
			// ISS, a well-documented reference object.
			"https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle",
		},
		TLERefreshInterval: 6 * time.Hour,
		DecayFeed:          registry.DefaultFeed,
		FeedCacheDir:       "/tmp/reentry/feeds",
		FeedCacheMaxFiles:  5,
		SnapshotInterval:   time.Hour,
		ClassifyWorkers:    runtime.NumCPU(),

		ReentryAltitudeKm:     decay.DefaultReentryAltitudeKm,
		CoarseAltitudeKm:      decay.DefaultCoarseAltitudeKm,
		BacktrackDays:         decay.DefaultBacktrackDays,
		PredictionHorizonDays: decay.DefaultPredictionHorizonDays,
		StepMinutes:           decay.DefaultStepMinutes,
		BacktrackStepMinutes:  decay.DefaultBacktrackStepMinutes,
	}
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.AuthEnabled && c.AuthToken == "" {
		return errors.New("auth_token is required when auth is enabled")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.StepMinutes <= 0 || c.BacktrackStepMinutes <= 0 {
		return errors.New("step_minutes and backtrack_step_minutes must be positive")
	}
	if c.PredictionHorizonDays <= 0 {
		return errors.New("prediction_horizon_days must be positive")
	}
	if c.BacktrackDays < 0 {
		return errors.New("backtrack_days must not be negative")
	}
	if c.TLEEnableFetch && c.TLERefreshInterval <= 0 {
		return errors.New("tle_refresh_interval must be positive")
	}
	if c.SnapshotInterval <= 0 {
		return errors.New("snapshot_interval must be positive")
	}
	return nil
}

// DecayOptions maps the configuration onto estimator options.
func (c *Config) DecayOptions() decay.Options {
	return decay.Options{
		ReentryAltitudeKm:     c.ReentryAltitudeKm,
		CoarseAltitudeKm:      c.CoarseAltitudeKm,
		BacktrackDays:         c.BacktrackDays,
		PredictionHorizonDays: c.PredictionHorizonDays,
		StepMinutes:           c.StepMinutes,
		BacktrackStepMinutes:  c.BacktrackStepMinutes,
		Workers:               c.ClassifyWorkers,
	}
}

// SlogLevel returns the configured log level. Validate rejects unknown names.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
