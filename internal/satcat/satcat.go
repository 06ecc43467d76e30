// Package satcat turns a CelesTrak SATCAT CSV export into the decayed-payload
// feed read by the registry package.
package satcat

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// UnknownObjectName groups payloads whose OBJECT_NAME is blank.
const UnknownObjectName = "(UNKNOWN_OBJECT_NAME)"

var requiredColumns = []string{
	"OBJECT_NAME",
	"OBJECT_ID",
	"NORAD_CAT_ID",
	"OBJECT_TYPE",
	"LAUNCH_DATE",
	"LAUNCH_SITE",
	"DECAY_DATE",
}

// Entry is one decayed payload. Field order matches the written feed.
type Entry struct {
	ObjectName string `json:"OBJECT_NAME"`
	ObjectID   string `json:"OBJECT_ID"`
	NoradCatID string `json:"NORAD_CAT_ID"`
	ObjectType string `json:"OBJECT_TYPE"`
	LaunchDate string `json:"LAUNCH_DATE"`
	LaunchSite string `json:"LAUNCH_SITE"`
	DecayDate  string `json:"DECAY_DATE"`
}

// Feed groups entries by object name.
type Feed map[string][]Entry

// Stats reports what a build saw.
type Stats struct {
	RowsRead int
	Kept     int
}

// Build reads a SATCAT CSV and keeps payloads (OBJECT_TYPE PAY) that have
// a decay date. Header names are matched case-insensitively. Dates in
// YYYY-MM-DD form are rewritten as MM/DD/YYYY, the form the registry reads.
func Build(r io.Reader) (Feed, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, Stats{}, errors.New("empty SATCAT CSV")
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading SATCAT header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, Stats{}, fmt.Errorf("missing required column: %s", col)
		}
	}

	feed := make(Feed)
	var stats Stats
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("reading SATCAT row %d: %w", stats.RowsRead+1, err)
		}
		if isBlankRow(row) {
			continue
		}
		stats.RowsRead++

		get := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		decay := get("DECAY_DATE")
		if decay == "" || !strings.EqualFold(get("OBJECT_TYPE"), "PAY") {
			continue
		}

		e := Entry{
			ObjectName: get("OBJECT_NAME"),
			ObjectID:   get("OBJECT_ID"),
			NoradCatID: get("NORAD_CAT_ID"),
			ObjectType: get("OBJECT_TYPE"),
			LaunchDate: toMDY(get("LAUNCH_DATE")),
			LaunchSite: get("LAUNCH_SITE"),
			DecayDate:  toMDY(decay),
		}
		key := e.ObjectName
		if key == "" {
			key = UnknownObjectName
		}
		feed[key] = append(feed[key], e)
		stats.Kept++
	}
	return feed, stats, nil
}

// BuildFile runs Build on a CSV file.
func BuildFile(path string) (Feed, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("opening SATCAT: %w", err)
	}
	defer f.Close()
	return Build(f)
}

// Write encodes the feed with sorted group keys.
func (f Feed) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding decayed feed: %w", err)
	}
	return nil
}

// WriteFile writes the feed to path, creating parent directories.
func (f Feed) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := f.Write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// toMDY rewrites an ISO date as MM/DD/YYYY and leaves anything else as is.
func toMDY(s string) string {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format("01/02/2006")
}
