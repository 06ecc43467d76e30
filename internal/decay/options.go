package decay

import (
	"log/slog"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
)

// Default search parameters.
const (
	DefaultReentryAltitudeKm     = 120
	DefaultCoarseAltitudeKm      = 2000
	DefaultBacktrackDays         = 60
	DefaultPredictionHorizonDays = 180
	DefaultStepMinutes           = 30
	DefaultBacktrackStepMinutes  = 120
)

// Options controls a classification run.
type Options struct {
	// ReentryAltitudeKm is the altitude at or below which re-entry is declared.
	ReentryAltitudeKm float64
	// CoarseAltitudeKm is the current altitude above which the forward
	// search is skipped.
	CoarseAltitudeKm      float64
	BacktrackDays         float64
	PredictionHorizonDays float64
	StepMinutes           float64
	BacktrackStepMinutes  float64

	// Now overrides the clock. Zero means time.Now().
	Now time.Time

	// ConfirmedDecays is the authoritative registry. Nil means no
	// authoritative data.
	ConfirmedDecays *registry.Registry

	// Workers > 1 classifies satellites in parallel.
	Workers int
}

// DefaultOptions returns the default search parameters with no registry.
func DefaultOptions() Options {
	return Options{
		ReentryAltitudeKm:     DefaultReentryAltitudeKm,
		CoarseAltitudeKm:      DefaultCoarseAltitudeKm,
		BacktrackDays:         DefaultBacktrackDays,
		PredictionHorizonDays: DefaultPredictionHorizonDays,
		StepMinutes:           DefaultStepMinutes,
		BacktrackStepMinutes:  DefaultBacktrackStepMinutes,
	}
}

// resolve fills the clock and replaces values the search cannot run with.
func (o Options) resolve(logger *slog.Logger) Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC()

	if o.StepMinutes <= 0 {
		logger.Warn("invalid step_minutes, using default", "value", o.StepMinutes, "default", DefaultStepMinutes)
		o.StepMinutes = DefaultStepMinutes
	}
	if o.BacktrackStepMinutes <= 0 {
		logger.Warn("invalid backtrack_step_minutes, using default", "value", o.BacktrackStepMinutes, "default", DefaultBacktrackStepMinutes)
		o.BacktrackStepMinutes = DefaultBacktrackStepMinutes
	}
	if o.PredictionHorizonDays <= 0 {
		logger.Warn("invalid prediction_horizon_days, using default", "value", o.PredictionHorizonDays, "default", DefaultPredictionHorizonDays)
		o.PredictionHorizonDays = DefaultPredictionHorizonDays
	}
	if o.BacktrackDays < 0 {
		logger.Warn("invalid backtrack_days, using default", "value", o.BacktrackDays, "default", DefaultBacktrackDays)
		o.BacktrackDays = DefaultBacktrackDays
	}
	return o
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(24*time.Hour))
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
