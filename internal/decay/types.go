// Package decay classifies satellites as already re-entered, likely to
// re-enter within a horizon, or undetermined.
//
// The estimator samples a propagator on fixed time grids: backward from now
// to confirm a recent decay, forward to predict one. An authoritative
// registry of confirmed re-entries always takes precedence over propagation.
package decay

import "time"

// Status is the outcome of a classification.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusPredicted Status = "PREDICTED"
	StatusUnknown   Status = "UNKNOWN"
)

// Window is a predicted re-entry interval. Start and End are ISO-8601 UTC.
type Window struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Classification is attached to each satellite by Classify.
//
// Date is set only for CONFIRMED, Window only for PREDICTED; UNKNOWN has
// neither.
type Classification struct {
	Status Status  `json:"decay_status"`
	Reason string  `json:"decay_reason"`
	Date   *string `json:"decay_date"`
	Window *Window `json:"predicted_decay_window"`
}

// Propagator computes the state of one orbiting object.
//
// AltitudeAt returns the altitude above the reference ellipsoid in km, or an
// error when no usable position exists at t. Bstar returns the drag term of
// the element set.
type Propagator interface {
	AltitudeAt(t time.Time) (float64, error)
	Bstar() float64
}

// Satellite is the estimator's view of a tracked object. Propagator is nil
// when no propagator state could be built for the object.
type Satellite struct {
	CatalogID  string
	Propagator Propagator
	Decay      *Classification
}

// Sample is one propagated altitude.
type Sample struct {
	Timestamp  time.Time
	AltitudeKm float64
}

// Crossing is the first sample of a search at or below the threshold, or
// the first sample that could not be propagated.
type Crossing struct {
	Date   time.Time
	Reason string
}

// isoMillis matches the millisecond ISO-8601 form used for decay timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z"

// FormatTime renders t the way classification timestamps are written.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// ParseTime parses a classification timestamp. Plain YYYY-MM-DD dates, as
// written for registry confirmations, are accepted too.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
