package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxWarnings bounds the distinct normalization warnings logged per load.
const maxWarnings = 5

// warnLimiter logs each distinct message once, up to a fixed budget.
type warnLimiter struct {
	logger *slog.Logger
	seen   map[string]struct{}
	limit  int
}

func newWarnLimiter(logger *slog.Logger, limit int) *warnLimiter {
	return &warnLimiter{logger: logger, seen: make(map[string]struct{}), limit: limit}
}

func (w *warnLimiter) warn(msg string) {
	if len(w.seen) >= w.limit {
		return
	}
	if _, dup := w.seen[msg]; dup {
		return
	}
	w.seen[msg] = struct{}{}
	w.logger.Warn("skipping decayed record", "reason", msg)
}

// Decode parses a decay feed and returns its normalized records, flattened
// across groups. Groups are visited in key order. Values that are not arrays
// are ignored; entries that fail normalization are dropped.
func Decode(data []byte, logger *slog.Logger) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("decay feed must be a JSON object")
	}

	var groups map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &groups); err != nil {
		return nil, fmt.Errorf("decoding decay feed: %w", err)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	warn := newWarnLimiter(logger, maxWarnings)
	var records []Record
	for _, k := range keys {
		var entries []json.RawMessage
		if err := json.Unmarshal(groups[k], &entries); err != nil {
			continue
		}
		for _, entry := range entries {
			if rec, ok := normalize(decodeEntry(entry), warn.warn); ok {
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

// decodeEntry returns the entry as a map, or nil when it is not an object.
func decodeEntry(entry json.RawMessage) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(entry))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	return raw
}

// normalize converts one raw feed entry. warn receives the reason whenever
// the entry is rejected.
func normalize(raw map[string]any, warn func(string)) (Record, bool) {
	var id string
	if v, ok := field(raw, catalogIDFields); ok {
		id = text(v)
	}
	if id == "" {
		warn("missing NORAD_CAT_ID")
		return Record{}, false
	}

	decayValue, _ := field(raw, decayDateFields)
	decay, decayISO, ok := parseMDY(decayValue)
	if !ok {
		warn(fmt.Sprintf("invalid DECAY_DATE for NORAD %s", id))
		return Record{}, false
	}

	rec := Record{
		CatalogID:    id,
		DecayDate:    decay,
		DecayDateISO: decayISO,
	}
	if launchValue, ok := field(raw, launchDateFields); ok {
		if _, iso, ok := parseMDY(launchValue); ok {
			rec.LaunchDateISO = &iso
		}
	}
	if name, ok := nonEmptyString(raw, objectNameFields); ok {
		rec.ObjectName = &name
	}
	return rec, true
}

// parseMDY parses an MM/DD/YYYY string to UTC midnight and its YYYY-MM-DD
// form. All three parts must be non-zero integers and name a real date.
func parseMDY(v any) (time.Time, string, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, "", false
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, "", false
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return time.Time{}, "", false
		}
		nums[i] = n
	}
	month, day, year := nums[0], nums[1], nums[2]

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, "", false
	}
	return d, d.Format("2006-01-02"), true
}
