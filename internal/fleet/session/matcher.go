// Package session reconstructs vehicle outings from catalogued sensor files.
// Each bus file anchors one candidate session; the matcher scores every
// combination of the remaining three kinds against it and keeps the best
// combination inside the configured tolerance.
package session

import (
	"math"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fleet/parse"
	"github.com/fleetworks-data/dispatch.report/internal/monitoring"
)

// Unmatched is a bus file that found no valid combination, kept for the run
// summary rather than silently dropped.
type Unmatched struct {
	VehicleID string `json:"vehicle_id"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
}

// Result is the outcome of matching one vehicle's catalog.
type Result struct {
	Sessions  []fleet.Session
	Unmatched []Unmatched
}

// candidate is one scored combination for a bus anchor.
type candidate struct {
	pos, inr, bcn int // indexes into the per-kind slices
	score         float64
	totalDiff     float64
	degraded      bool
}

// Match pairs each bus file with one file of every other kind. All four kinds
// must have at least one timestamped file or no sessions are emitted; that is
// a coverage gap, not an error.
func Match(vehicleID string, filesByKind map[fleet.SensorKind][]fleet.FileRecord, cfg *config.PipelineConfig) Result {
	var res Result
	for _, kind := range fleet.AllSensorKinds {
		if len(filesByKind[kind]) == 0 {
			monitoring.Logf("session: %s: no %s files, skipping matching", vehicleID, kind)
			return res
		}
	}

	tolerance := cfg.GetMatchTolerance().Seconds()
	buses := filesByKind[fleet.KindBus]
	positions := filesByKind[fleet.KindPosition]
	inertials := filesByKind[fleet.KindInertial]
	beacons := filesByKind[fleet.KindBeacon]

	consumed := map[fleet.SensorKind]map[int]bool{
		fleet.KindPosition: {},
		fleet.KindInertial: {},
		fleet.KindBeacon:   {},
	}

	for _, bus := range buses {
		best, found := bestCombination(bus, positions, inertials, beacons, consumed, tolerance)
		if !found {
			res.Unmatched = append(res.Unmatched, Unmatched{
				VehicleID: vehicleID,
				Path:      bus.Path,
				Reason:    "no combination within tolerance",
			})
			continue
		}

		consumed[fleet.KindPosition][best.pos] = true
		consumed[fleet.KindInertial][best.inr] = true
		consumed[fleet.KindBeacon][best.bcn] = true

		res.Sessions = append(res.Sessions, buildSession(vehicleID, bus,
			positions[best.pos], inertials[best.inr], beacons[best.bcn], best))
	}
	return res
}

// bestCombination scans every unconsumed combination for one bus anchor and
// returns the highest-scoring valid one. Ties go to the combination with the
// smaller total absolute difference.
func bestCombination(bus fleet.FileRecord, positions, inertials, beacons []fleet.FileRecord,
	consumed map[fleet.SensorKind]map[int]bool, toleranceSec float64) (candidate, bool) {

	best := candidate{score: -1}
	found := false

	for pi, pos := range positions {
		if consumed[fleet.KindPosition][pi] {
			continue
		}
		dPos := absDiffSeconds(*pos.RecoveredAt, *bus.RecoveredAt)
		if dPos > toleranceSec {
			continue
		}
		for ii, inr := range inertials {
			if consumed[fleet.KindInertial][ii] {
				continue
			}
			dInr := absDiffSeconds(*inr.RecoveredAt, *bus.RecoveredAt)
			if dInr > toleranceSec {
				continue
			}
			for bi, bcn := range beacons {
				if consumed[fleet.KindBeacon][bi] {
					continue
				}
				dBcn, degraded, valid := beaconDiff(*bcn.RecoveredAt, *bus.RecoveredAt, toleranceSec)
				if !valid {
					continue
				}

				total := dPos + dInr + dBcn
				score := 1.0 / (1.0 + total/10.0)
				c := candidate{pos: pi, inr: ii, bcn: bi, score: score, totalDiff: total, degraded: degraded}
				if !found || c.score > best.score ||
					(c.score == best.score && c.totalDiff < best.totalDiff) {
					best = c
					found = true
				}
			}
		}
	}
	return best, found
}

// beaconDiff applies the degraded-date rule: a beacon timestamp at exactly
// midnight carries no time of day, so it matches any bus file on the same
// date with zero disagreement and rejects every other date outright.
func beaconDiff(beacon, bus time.Time, toleranceSec float64) (diff float64, degraded, valid bool) {
	if parse.IsMidnight(beacon) {
		if parse.SameDate(beacon, bus) {
			return 0, true, true
		}
		return 0, false, false
	}
	d := absDiffSeconds(beacon, bus)
	if d > toleranceSec {
		return 0, false, false
	}
	return d, false, true
}

func buildSession(vehicleID string, bus, pos, inr, bcn fleet.FileRecord, c candidate) fleet.Session {
	files := map[fleet.SensorKind]fleet.FileRecord{
		fleet.KindBus:      bus,
		fleet.KindPosition: pos,
		fleet.KindInertial: inr,
		fleet.KindBeacon:   bcn,
	}

	// A degraded beacon timestamp is a date stand-in, not a real clock value;
	// leave it out of the session bounds.
	bounds := []time.Time{*bus.RecoveredAt, *pos.RecoveredAt, *inr.RecoveredAt}
	if !c.degraded {
		bounds = append(bounds, *bcn.RecoveredAt)
	}
	start, end := bounds[0], bounds[0]
	for _, t := range bounds[1:] {
		if t.Before(start) {
			start = t
		}
		if t.After(end) {
			end = t
		}
	}

	anchor := *bus.RecoveredAt
	return fleet.Session{
		VehicleID:  vehicleID,
		Date:       time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location()),
		StartTime:  start,
		EndTime:    end,
		Files:      files,
		MatchScore: c.score,
		Degraded:   c.degraded,
	}
}

func absDiffSeconds(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Seconds())
}
