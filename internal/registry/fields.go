package registry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Accepted spellings for each feed field, in lookup order.
var (
	catalogIDFields  = []string{"NORAD_CAT_ID", "norad_cat_id", "NORADID", "noradId"}
	decayDateFields  = []string{"DECAY_DATE", "decay_date"}
	launchDateFields = []string{"LAUNCH_DATE", "launch_date"}
	objectNameFields = []string{"OBJECT_NAME", "object_name"}
)

// field returns the value of the first alias present with a non-null value.
func field(raw map[string]any, aliases []string) (any, bool) {
	for _, name := range aliases {
		if v, ok := raw[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// nonEmptyString returns the first alias holding a non-empty string.
func nonEmptyString(raw map[string]any, aliases []string) (string, bool) {
	for _, name := range aliases {
		if s, ok := raw[name].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// text renders a scalar feed value as a trimmed string. Catalog ids arrive
// both as JSON numbers and as strings.
func text(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
