package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, unit := range ValidUnits {
		if !IsValid(unit) {
			t.Errorf("IsValid(%q) = false, want true", unit)
		}
	}
	if IsValid("furlongs") {
		t.Error("IsValid(furlongs) = true, want false")
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name   string
		speed  float64
		target string
		want   float64
	}{
		{"kmh passthrough", 36.0, KMH, 36.0},
		{"kmh to mps", 36.0, MPS, 10.0},
		{"kmh to mph", 100.0, MPH, 62.1371},
		{"unknown unit falls back", 50.0, "knots", 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSpeed(tt.speed, tt.target)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("ConvertSpeed(%v, %s) = %v, want %v", tt.speed, tt.target, got, tt.want)
			}
		})
	}
}

func TestHaversineMeters(t *testing.T) {
	// Identical points are zero metres apart.
	if d := HaversineMeters(40.4168, -3.7038, 40.4168, -3.7038); d != 0 {
		t.Errorf("distance between identical points = %v, want 0", d)
	}

	// One degree of latitude is roughly 111.2 km.
	d := HaversineMeters(40.0, -3.7, 41.0, -3.7)
	if math.Abs(d-111195) > 200 {
		t.Errorf("one degree latitude = %v m, want ~111195", d)
	}

	// ~50m offset at Madrid's latitude: 0.00045 degrees of latitude.
	d = HaversineMeters(40.4168, -3.7038, 40.41725, -3.7038)
	if d < 45 || d > 55 {
		t.Errorf("small offset distance = %v m, want ~50", d)
	}
}
