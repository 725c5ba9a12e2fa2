package snapshot

import "math"

// Default tolerances for the similarity check.
const (
	DefaultTempThreshold     = 1.0
	DefaultHumidityThreshold = 5.0
)

// IsSimilar reports whether candidate is numerically indistinguishable from
// previous under the given tolerances: similar iff the absolute temperature
// delta is below tempThreshold and the absolute humidity delta is below
// humidityThreshold.
//
// A field missing from previous is filled from candidate, so a sparse
// baseline never fakes a difference. Any coercion failure returns false —
// the policy fails open toward insertion, never toward dropping data.
func IsSimilar(candidate, previous Snapshot, tempThreshold, humidityThreshold float64) bool {
	newTemp, err := candidate.Float(FieldTemperature, 0)
	if err != nil {
		return false
	}
	lastTemp, err := previous.Float(FieldTemperature, newTemp)
	if err != nil {
		return false
	}
	newHumidity, err := candidate.Float(FieldHumidity, 0)
	if err != nil {
		return false
	}
	lastHumidity, err := previous.Float(FieldHumidity, newHumidity)
	if err != nil {
		return false
	}

	return math.Abs(newTemp-lastTemp) < tempThreshold &&
		math.Abs(newHumidity-lastHumidity) < humidityThreshold
}
