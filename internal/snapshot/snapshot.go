// Package snapshot holds the point-in-time weather reading and the
// similarity policy that decides whether a new reading is worth storing.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Field names used by the ingestion pipeline. A Snapshot may carry any
// other fields; the policy only looks at temperature and humidity.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldWindSpeed   = "windSpeed"
	FieldUVIndex     = "uvIndex"
	FieldAvgTemp     = "avgTemp"
	FieldDescription = "description"
)

// Snapshot is an immutable mapping of named numeric/textual fields produced
// by a data source at one instant. It is never stored directly; Encode
// turns it into a record payload.
type Snapshot map[string]any

// Encode serializes the snapshot for storage as an opaque record payload.
func (s Snapshot) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// Decode parses a stored record payload back into a Snapshot.
func Decode(payload json.RawMessage) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Float coerces the named field to a float64. Missing fields yield the
// fallback; numeric strings and json.Number are accepted, anything else is
// a coercion error.
func (s Snapshot) Float(name string, fallback float64) (float64, error) {
	v, ok := s[name]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %w", name, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has non-numeric type %T", name, v)
	}
}
