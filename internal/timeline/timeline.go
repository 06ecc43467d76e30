// Package timeline orders classification results into re-entry events.
package timeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
)

// Kind selects events in Filter.
type Kind string

const (
	KindAll       Kind = "ALL"
	KindConfirmed Kind = "CONFIRMED"
	KindPredicted Kind = "PREDICTED"
)

// ParseKind accepts ALL, CONFIRMED or PREDICTED in any case. Empty means ALL.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case "":
		return KindAll, true
	case KindAll, KindConfirmed, KindPredicted:
		return k, true
	default:
		return "", false
	}
}

// Item is one classified object.
type Item struct {
	CatalogID string
	Name      string
	Decay     *decay.Classification
}

// Event is a point (CONFIRMED) or a span (PREDICTED) on the timeline. For
// points Start and End are equal.
type Event struct {
	Kind       Kind      `json:"type"`
	CatalogID  string    `json:"catalog_id"`
	Name       string    `json:"name,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Confidence *float64  `json:"confidence,omitempty"`
	Reason     string    `json:"reason"`
}

// Build converts items into events sorted by start time. UNKNOWN results
// and results with unparseable timestamps are dropped.
func Build(items []Item) []Event {
	var events []Event
	for _, it := range items {
		d := it.Decay
		if d == nil {
			continue
		}
		switch d.Status {
		case decay.StatusConfirmed:
			if d.Date == nil {
				continue
			}
			t, err := decay.ParseTime(*d.Date)
			if err != nil {
				continue
			}
			events = append(events, Event{
				Kind:      KindConfirmed,
				CatalogID: it.CatalogID,
				Name:      it.Name,
				Start:     t,
				End:       t,
				Reason:    d.Reason,
			})
		case decay.StatusPredicted:
			if d.Window == nil {
				continue
			}
			start, err := decay.ParseTime(d.Window.Start)
			if err != nil {
				continue
			}
			end, err := decay.ParseTime(d.Window.End)
			if err != nil {
				continue
			}
			conf := d.Window.Confidence
			events = append(events, Event{
				Kind:       KindPredicted,
				CatalogID:  it.CatalogID,
				Name:       it.Name,
				Start:      start,
				End:        end,
				Confidence: &conf,
				Reason:     d.Reason,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// Filter returns the events of one kind. KindAll returns events unchanged.
func Filter(events []Event, kind Kind) []Event {
	if kind == KindAll || kind == "" {
		return events
	}
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Range is a padded display interval.
type Range struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Bounds spans every event, padded on both sides by 5% of the span or a
// week, whichever is larger. ok is false for no events.
func Bounds(events []Event) (r Range, ok bool) {
	if len(events) == 0 {
		return Range{}, false
	}
	lo, hi := events[0].Start, events[0].End
	for _, e := range events[1:] {
		if e.Start.Before(lo) {
			lo = e.Start
		}
		if e.End.After(hi) {
			hi = e.End
		}
	}
	pad := max(7*24*time.Hour, hi.Sub(lo)/20)
	return Range{Min: lo.Add(-pad), Max: hi.Add(pad)}, true
}

// ConfidenceStats describes predicted-window confidences.
type ConfidenceStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary counts events by kind.
type Summary struct {
	Total      int              `json:"total"`
	Confirmed  int              `json:"confirmed"`
	Predicted  int              `json:"predicted"`
	Confidence *ConfidenceStats `json:"confidence,omitempty"`
}

// Summarize counts events and, when any are predicted, describes their
// confidence. The standard deviation is the sample estimate, 0 for a
// single prediction.
func Summarize(events []Event) Summary {
	s := Summary{Total: len(events)}
	var conf []float64
	for _, e := range events {
		switch e.Kind {
		case KindConfirmed:
			s.Confirmed++
		case KindPredicted:
			s.Predicted++
			if e.Confidence != nil {
				conf = append(conf, *e.Confidence)
			}
		}
	}
	if len(conf) == 0 {
		return s
	}

	mean, std := stat.MeanStdDev(conf, nil)
	if math.IsNaN(std) {
		std = 0
	}
	s.Confidence = &ConfidenceStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(conf),
		Max:    floats.Max(conf),
	}
	return s
}
