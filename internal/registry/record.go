// Package registry holds the authoritative list of confirmed re-entries.
//
// A decay feed is a JSON object whose values are arrays of raw records.
// Records are normalized, flattened across groups and reduced to one entry
// per catalog id, keeping the latest decay date. The result is cached for
// the life of the process by Cache.
package registry

import "time"

// Record is one confirmed re-entry.
type Record struct {
	CatalogID     string    `json:"catalog_id"`
	DecayDate     time.Time `json:"-"`
	DecayDateISO  string    `json:"decay_date"`
	LaunchDateISO *string   `json:"launch_date"`
	ObjectName    *string   `json:"object_name"`
}
