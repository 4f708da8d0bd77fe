// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}

// ClosedInterval builds a closed state interval for a vehicle.
func ClosedInterval(vehicleID string, key fleet.StateKey, start, end time.Time) fleet.StateInterval {
	iv := fleet.StateInterval{
		VehicleID: vehicleID,
		Key:       key,
		StartTime: start,
		Origin:    fleet.OriginComputed,
	}
	iv.CloseAt(end)
	return iv
}

// OpenInterval builds a state interval with no end time.
func OpenInterval(vehicleID string, key fleet.StateKey, start time.Time) fleet.StateInterval {
	return fleet.StateInterval{
		VehicleID: vehicleID,
		Key:       key,
		StartTime: start,
		Origin:    fleet.OriginComputed,
	}
}
