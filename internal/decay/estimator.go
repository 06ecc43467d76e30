package decay

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arcazj/openbexi-earth-orbit/internal/metrics"
)

// Estimator runs the decay decision tree.
type Estimator struct {
	logger *slog.Logger
}

// NewEstimator creates an Estimator that logs propagation problems to logger.
func NewEstimator(logger *slog.Logger) *Estimator {
	return &Estimator{logger: logger}
}

// Classify sets Decay on every satellite and returns the same slice. It never
// fails: every per-satellite problem resolves to a status with a reason.
// Results depend only on the propagators and opts, so a fixed opts.Now gives
// identical output across runs.
func (e *Estimator) Classify(sats []*Satellite, opts Options) []*Satellite {
	opts = opts.resolve(e.logger)

	if opts.Workers <= 1 {
		for _, sat := range sats {
			if sat != nil {
				sat.Decay = e.classifyOne(sat, opts)
			}
		}
		return sats
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for _, sat := range sats {
		if sat == nil {
			continue
		}
		g.Go(func() error {
			sat.Decay = e.classifyOne(sat, opts)
			return nil
		})
	}
	g.Wait()
	return sats
}

func (e *Estimator) classifyOne(sat *Satellite, opts Options) *Classification {
	c := e.decide(sat, opts)
	metrics.RecordClassification(string(c.Status))
	return c
}

func (e *Estimator) decide(sat *Satellite, opts Options) *Classification {
	now := opts.Now
	threshold := opts.ReentryAltitudeKm

	if rec, ok := opts.ConfirmedDecays.Lookup(sat.CatalogID); ok {
		return confirmed("Source: "+opts.ConfirmedDecays.Source(), rec.DecayDateISO)
	}

	if sat.Propagator == nil {
		return unknown("Missing propagator state; cannot propagate")
	}

	// An object that cannot be propagated at the current epoch is treated
	// as already decayed. This is a policy choice, not a physical result.
	altitude, ok := e.sample(sat, now)
	if !ok {
		return confirmed("Propagation invalid near current epoch", FormatTime(now))
	}

	backStart := now.Add(-days(opts.BacktrackDays))
	if c, ok := e.findCrossing(sat, backStart, now, opts.BacktrackStepMinutes, threshold, "backward"); ok {
		return confirmed(c.Reason, FormatTime(c.Date))
	}

	if altitude <= threshold {
		return confirmed(
			fmt.Sprintf("Current altitude %.1f km below %s km threshold", altitude, formatKm(threshold)),
			FormatTime(now),
		)
	}

	if altitude > opts.CoarseAltitudeKm {
		return unknown(fmt.Sprintf("Altitude %.0f km exceeds coarse decay search limit", altitude))
	}

	horizonEnd := now.Add(days(opts.PredictionHorizonDays))
	if c, ok := e.findCrossing(sat, now, horizonEnd, opts.StepMinutes, threshold, "forward"); ok {
		pad := windowPadDays(opts.StepMinutes)
		half := days(pad * 0.5)
		return &Classification{
			Status: StatusPredicted,
			Reason: c.Reason,
			Window: &Window{
				Start:      FormatTime(c.Date.Add(-half)),
				End:        FormatTime(c.Date.Add(half)),
				Confidence: confidenceForWindow(c.Date, now, e.bstar(sat), opts.PredictionHorizonDays),
			},
		}
	}

	return unknown("Propagation stays above threshold within horizon")
}

// findCrossing scans [start, end] inclusive at a fixed cadence and returns
// the first sample that fails to propagate or sits at or below thresholdKm.
func (e *Estimator) findCrossing(sat *Satellite, start, end time.Time, stepMinutes, thresholdKm float64, direction string) (Crossing, bool) {
	step := minutes(stepMinutes)
	samples := 0
	defer func() { metrics.AddPropagationSamples(direction, samples) }()

	for t := start; !t.After(end); t = t.Add(step) {
		samples++
		alt, ok := e.sample(sat, t)
		if !ok {
			return Crossing{Date: t, Reason: "Propagation failed"}, true
		}
		if alt <= thresholdKm {
			return Crossing{Date: t, Reason: fmt.Sprintf("Altitude dropped below %s km", formatKm(thresholdKm))}, true
		}
	}
	return Crossing{}, false
}

// sample propagates one instant. Errors, panics and non-finite altitudes
// all count as no usable position.
func (e *Estimator) sample(sat *Satellite, t time.Time) (alt float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("propagation failed", "catalog_id", sat.CatalogID, "time", FormatTime(t), "panic", fmt.Sprint(r))
			alt, ok = 0, false
		}
	}()

	alt, err := sat.Propagator.AltitudeAt(t)
	if err != nil {
		e.logger.Warn("propagation failed", "catalog_id", sat.CatalogID, "time", FormatTime(t), "error", err)
		return 0, false
	}
	if math.IsNaN(alt) || math.IsInf(alt, 0) {
		e.logger.Warn("propagation returned non-finite altitude", "catalog_id", sat.CatalogID, "time", FormatTime(t))
		return 0, false
	}
	return alt, true
}

func (e *Estimator) bstar(sat *Satellite) (b float64) {
	defer func() {
		if r := recover(); r != nil {
			b = 0
		}
	}()
	b = sat.Propagator.Bstar()
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return 0
	}
	return b
}

// windowPadDays is the width of a predicted window: one day per started
// hour of forward step, between 1 and 10 days.
func windowPadDays(stepMinutes float64) float64 {
	return clamp(1, 10, math.Ceil(stepMinutes/60))
}

// confidenceForWindow scores a predicted crossing. Sooner crossings and
// larger drag terms score higher; the result is always in [0.1, 1].
func confidenceForWindow(crossing, now time.Time, bstar, horizonDays float64) float64 {
	daysUntil := crossing.Sub(now).Hours() / 24
	proximity := 0.0
	if horizonDays > 0 {
		proximity = clamp(0, 1, (horizonDays-daysUntil)/horizonDays)
	}
	dragBonus := math.Min(0.3, math.Abs(bstar)*1e5)
	base := 0.35 + dragBonus
	return clamp(0.1, 1, base+proximity*0.5)
}

func clamp(lo, hi, v float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// formatKm renders a threshold with the shortest exact decimal form, so 120
// prints as "120" and 120.5 as "120.5".
func formatKm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func confirmed(reason, date string) *Classification {
	return &Classification{Status: StatusConfirmed, Reason: reason, Date: &date}
}

func unknown(reason string) *Classification {
	return &Classification{Status: StatusUnknown, Reason: reason}
}
