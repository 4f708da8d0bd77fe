package session

import (
	"math"
	"testing"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

func record(vehicleID string, kind fleet.SensorKind, path string, at time.Time) fleet.FileRecord {
	t := at
	return fleet.FileRecord{
		Path:        path,
		Filename:    path,
		VehicleID:   vehicleID,
		Kind:        kind,
		RecoveredAt: &t,
	}
}

func day(hour, min, sec int) time.Time {
	return time.Date(2023, 5, 10, hour, min, sec, 0, time.UTC)
}

func TestMatchDegradedBeacon(t *testing.T) {
	cfg := &config.PipelineConfig{}
	files := map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus:      {record("V-042", fleet.KindBus, "can.txt", day(10, 0, 0))},
		fleet.KindPosition: {record("V-042", fleet.KindPosition, "gps.txt", day(10, 1, 30))},
		fleet.KindInertial: {record("V-042", fleet.KindInertial, "stab.txt", day(9, 59, 40))},
		fleet.KindBeacon:   {record("V-042", fleet.KindBeacon, "beacon.txt", day(0, 0, 0))},
	}

	res := Match("V-042", files, cfg)
	if len(res.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(res.Sessions))
	}
	if len(res.Unmatched) != 0 {
		t.Fatalf("Unmatched = %+v, want none", res.Unmatched)
	}

	s := res.Sessions[0]
	if !s.Degraded {
		t.Error("Degraded = false, want true for midnight beacon")
	}
	// diffs: position 90s, inertial 20s, beacon 0 under the date-only rule.
	wantScore := 1.0 / (1.0 + 110.0/10.0)
	if math.Abs(s.MatchScore-wantScore) > 1e-9 {
		t.Errorf("MatchScore = %v, want %v", s.MatchScore, wantScore)
	}
	if !s.Date.Equal(day(0, 0, 0)) {
		t.Errorf("Date = %v, want %v", s.Date, day(0, 0, 0))
	}
	// The degraded beacon timestamp is excluded from the session bounds.
	if !s.StartTime.Equal(day(9, 59, 40)) || !s.EndTime.Equal(day(10, 1, 30)) {
		t.Errorf("bounds = [%v, %v]", s.StartTime, s.EndTime)
	}
}

func TestMatchBeaconDateMismatchRejected(t *testing.T) {
	cfg := &config.PipelineConfig{}
	files := map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus:      {record("V-042", fleet.KindBus, "can.txt", day(10, 0, 0))},
		fleet.KindPosition: {record("V-042", fleet.KindPosition, "gps.txt", day(10, 1, 30))},
		fleet.KindInertial: {record("V-042", fleet.KindInertial, "stab.txt", day(9, 59, 40))},
		// Midnight beacon dated the day after the bus anchor.
		fleet.KindBeacon: {record("V-042", fleet.KindBeacon, "beacon.txt",
			time.Date(2023, 5, 11, 0, 0, 0, 0, time.UTC))},
	}

	res := Match("V-042", files, cfg)
	if len(res.Sessions) != 0 {
		t.Fatalf("Sessions = %+v, want none", res.Sessions)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0].Path != "can.txt" {
		t.Fatalf("Unmatched = %+v, want the bus anchor", res.Unmatched)
	}
}

func TestMatchOutsideTolerance(t *testing.T) {
	cfg := &config.PipelineConfig{}
	files := map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus:      {record("V-042", fleet.KindBus, "can.txt", day(10, 0, 0))},
		fleet.KindPosition: {record("V-042", fleet.KindPosition, "gps.txt", day(10, 31, 0))},
		fleet.KindInertial: {record("V-042", fleet.KindInertial, "stab.txt", day(10, 0, 5))},
		fleet.KindBeacon:   {record("V-042", fleet.KindBeacon, "beacon.txt", day(10, 0, 10))},
	}

	res := Match("V-042", files, cfg)
	if len(res.Sessions) != 0 {
		t.Fatalf("Sessions = %+v, want none (position 31m off anchor)", res.Sessions)
	}
	if len(res.Unmatched) != 1 {
		t.Fatalf("Unmatched = %+v, want 1", res.Unmatched)
	}
}

func TestMatchStrictTolerance(t *testing.T) {
	strict := true
	cfg := &config.PipelineConfig{StrictMatching: &strict}
	files := map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus:      {record("V-042", fleet.KindBus, "can.txt", day(10, 0, 0))},
		fleet.KindPosition: {record("V-042", fleet.KindPosition, "gps.txt", day(10, 1, 30))},
		// 2.5 minutes off the anchor: fine at the default tolerance, rejected
		// in strict mode.
		fleet.KindInertial: {record("V-042", fleet.KindInertial, "stab.txt", day(10, 2, 30))},
		fleet.KindBeacon:   {record("V-042", fleet.KindBeacon, "beacon.txt", day(10, 0, 10))},
	}

	res := Match("V-042", files, cfg)
	if len(res.Sessions) != 0 {
		t.Fatalf("Sessions = %+v, want none in strict mode", res.Sessions)
	}

	cfg = &config.PipelineConfig{}
	res = Match("V-042", files, cfg)
	if len(res.Sessions) != 1 {
		t.Fatalf("Sessions = %+v, want 1 at default tolerance", res.Sessions)
	}
}

func TestMatchMissingKindEmitsNothing(t *testing.T) {
	cfg := &config.PipelineConfig{}
	files := map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus:      {record("V-042", fleet.KindBus, "can.txt", day(10, 0, 0))},
		fleet.KindPosition: {record("V-042", fleet.KindPosition, "gps.txt", day(10, 1, 30))},
		fleet.KindInertial: {record("V-042", fleet.KindInertial, "stab.txt", day(9, 59, 40))},
	}

	res := Match("V-042", files, cfg)
	if len(res.Sessions) != 0 || len(res.Unmatched) != 0 {
		t.Fatalf("res = %+v, want empty for incomplete material", res)
	}
}

func TestMatchConsumesFiles(t *testing.T) {
	cfg := &config.PipelineConfig{}
	files := map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus: {
			record("V-042", fleet.KindBus, "can_am.txt", day(8, 0, 0)),
			record("V-042", fleet.KindBus, "can_pm.txt", day(14, 0, 0)),
		},
		fleet.KindPosition: {
			record("V-042", fleet.KindPosition, "gps_am.txt", day(8, 1, 0)),
			record("V-042", fleet.KindPosition, "gps_pm.txt", day(14, 2, 0)),
		},
		fleet.KindInertial: {
			record("V-042", fleet.KindInertial, "stab_am.txt", day(7, 59, 0)),
			record("V-042", fleet.KindInertial, "stab_pm.txt", day(13, 58, 0)),
		},
		fleet.KindBeacon: {
			record("V-042", fleet.KindBeacon, "beacon_am.txt", day(8, 0, 30)),
			record("V-042", fleet.KindBeacon, "beacon_pm.txt", day(14, 0, 30)),
		},
	}

	res := Match("V-042", files, cfg)
	if len(res.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d, want 2", len(res.Sessions))
	}
	am, pm := res.Sessions[0], res.Sessions[1]
	if am.Files[fleet.KindPosition].Path != "gps_am.txt" {
		t.Errorf("morning session position = %s", am.Files[fleet.KindPosition].Path)
	}
	if pm.Files[fleet.KindPosition].Path != "gps_pm.txt" {
		t.Errorf("afternoon session position = %s", pm.Files[fleet.KindPosition].Path)
	}
	if pm.Files[fleet.KindBeacon].Path != "beacon_pm.txt" {
		t.Errorf("afternoon session beacon = %s", pm.Files[fleet.KindBeacon].Path)
	}
}

func TestMatchToleranceBound(t *testing.T) {
	cfg := &config.PipelineConfig{}
	res := Match("V-042", map[fleet.SensorKind][]fleet.FileRecord{
		fleet.KindBus:      {record("V-042", fleet.KindBus, "can.txt", day(10, 0, 0))},
		fleet.KindPosition: {record("V-042", fleet.KindPosition, "gps.txt", day(10, 30, 0))},
		fleet.KindInertial: {record("V-042", fleet.KindInertial, "stab.txt", day(9, 30, 0))},
		fleet.KindBeacon:   {record("V-042", fleet.KindBeacon, "beacon.txt", day(10, 29, 59))},
	}, cfg)

	// Exactly at tolerance is still a match; every max diff ≤ 30 minutes.
	if len(res.Sessions) != 1 {
		t.Fatalf("Sessions = %+v, want 1 at the tolerance boundary", res.Sessions)
	}
	for _, s := range res.Sessions {
		for kind, rec := range s.Files {
			if kind == fleet.KindBus {
				continue
			}
			diff := rec.RecoveredAt.Sub(*s.Files[fleet.KindBus].RecoveredAt)
			if diff < 0 {
				diff = -diff
			}
			if diff > cfg.GetMatchTolerance() {
				t.Errorf("%s diff %v exceeds tolerance", kind, diff)
			}
		}
	}
}
