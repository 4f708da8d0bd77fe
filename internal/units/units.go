// Package units provides shared conversions for speed and geographic
// distance used by the stationary-stop detector and KPI reporting.
package units

// Unit constants
const (
	KMH = "kmh"
	MPH = "mph"
	MPS = "mps"
)

// ValidUnits contains all valid speed unit values.
var ValidUnits = []string{KMH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from km/h (the unit the position stream
// reports) to the target units.
func ConvertSpeed(speedKMH float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedKMH * 0.621371
	case MPS:
		return speedKMH / 3.6
	case KMH:
		return speedKMH
	default:
		return speedKMH
	}
}
