package service

import (
	"strings"
	"time"

	"github.com/arcazj/openbexi-earth-orbit/internal/decay"
	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
	"github.com/arcazj/openbexi-earth-orbit/internal/timeline"
	"github.com/arcazj/openbexi-earth-orbit/internal/tle"
)

// Result is one object's classification.
type Result struct {
	CatalogID string                `json:"catalog_id"`
	Name      string                `json:"name"`
	Decay     *decay.Classification `json:"decay"`
}

// Snapshot is one classification run over a dataset. Read-only once built.
type Snapshot struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	Now              time.Time `json:"now"`
	DatasetSource    string    `json:"dataset_source"`
	DatasetFetchedAt time.Time `json:"dataset_fetched_at"`
	RegistrySource   string    `json:"registry_source,omitempty"`
	RegistryRecords  int       `json:"registry_records"`
	Results          []Result  `json:"results"`

	index map[string]int
}

func newSnapshot(runID string, now time.Time, ds *tle.Dataset, reg *registry.Registry) *Snapshot {
	return &Snapshot{
		RunID:            runID,
		GeneratedAt:      time.Now().UTC(),
		Now:              now.UTC(),
		DatasetSource:    ds.Source,
		DatasetFetchedAt: ds.FetchedAt.UTC(),
		RegistrySource:   reg.Source(),
		RegistryRecords:  reg.Len(),
		Results:          make([]Result, 0, len(ds.Satellites)),
		index:            make(map[string]int, len(ds.Satellites)),
	}
}

func (s *Snapshot) add(r Result) {
	s.index[r.CatalogID] = len(s.Results)
	s.Results = append(s.Results, r)
}

// Lookup finds a result by catalog id.
func (s *Snapshot) Lookup(catalogID string) (Result, bool) {
	i, ok := s.index[strings.TrimSpace(catalogID)]
	if !ok {
		return Result{}, false
	}
	return s.Results[i], true
}

// WithStatus returns the results with the given status, in snapshot order.
func (s *Snapshot) WithStatus(status decay.Status) []Result {
	out := make([]Result, 0)
	for _, r := range s.Results {
		if r.Decay != nil && r.Decay.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Counts returns the number of results per status.
func (s *Snapshot) Counts() map[decay.Status]int {
	counts := map[decay.Status]int{
		decay.StatusConfirmed: 0,
		decay.StatusPredicted: 0,
		decay.StatusUnknown:   0,
	}
	for _, r := range s.Results {
		if r.Decay != nil {
			counts[r.Decay.Status]++
		}
	}
	return counts
}

// Timeline converts the results into timeline events.
func (s *Snapshot) Timeline() []timeline.Event {
	items := make([]timeline.Item, 0, len(s.Results))
	for _, r := range s.Results {
		items = append(items, timeline.Item{CatalogID: r.CatalogID, Name: r.Name, Decay: r.Decay})
	}
	return timeline.Build(items)
}
