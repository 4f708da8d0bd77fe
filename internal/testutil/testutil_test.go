package testutil

import (
	"testing"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

func TestClosedInterval(t *testing.T) {
	start := time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	iv := ClosedInterval("V-001", fleet.StateOnScene, start, end)
	if iv.Open() {
		t.Fatal("interval should be closed")
	}
	if *iv.DurationSeconds != 5400 {
		t.Errorf("duration = %v, want 5400", *iv.DurationSeconds)
	}
}

func TestOpenInterval(t *testing.T) {
	iv := OpenInterval("V-001", fleet.StateAtDepot, time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC))
	if !iv.Open() {
		t.Fatal("interval should be open")
	}
	if iv.DurationSeconds != nil {
		t.Error("open interval should have nil duration")
	}
}

func TestPtrHelpers(t *testing.T) {
	now := time.Now()
	if !TimePtr(now).Equal(now) {
		t.Error("TimePtr should preserve value")
	}
	if *FloatPtr(1.5) != 1.5 {
		t.Error("FloatPtr should preserve value")
	}
}
