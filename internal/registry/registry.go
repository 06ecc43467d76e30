package registry

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when a catalog id has no confirmed re-entry.
var ErrNotFound = errors.New("no confirmed decay for catalog id")

// Registry maps catalog ids to confirmed re-entries. Read-only once built.
type Registry struct {
	source  string
	records map[string]Record
}

// Build reduces records to one per catalog id, keeping the latest decay
// date. Ties keep the record seen first.
func Build(source string, records []Record) *Registry {
	m := make(map[string]Record, len(records))
	for _, rec := range records {
		if existing, ok := m[rec.CatalogID]; !ok || existing.DecayDate.Before(rec.DecayDate) {
			m[rec.CatalogID] = rec
		}
	}
	return &Registry{source: source, records: m}
}

// Source names where the records came from.
func (r *Registry) Source() string {
	if r == nil {
		return ""
	}
	return r.source
}

// Lookup returns the record for a catalog id. Safe on a nil Registry.
func (r *Registry) Lookup(catalogID string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	rec, ok := r.records[strings.TrimSpace(catalogID)]
	return rec, ok
}

// Len returns the number of distinct catalog ids.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Records returns all records ordered by catalog id.
func (r *Registry) Records() []Record {
	if r == nil {
		return nil
	}
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CatalogID < out[j].CatalogID
	})
	return out
}
