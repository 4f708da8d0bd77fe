// Package kpi reduces state intervals over a query window into duration
// sums, counts and derived percentages. Everything here is a pure
// computation; summaries are recomputed on demand and never persisted.
package kpi

import (
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// Window is the half-open query range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Length returns the window span.
func (w Window) Length() time.Duration {
	return w.End.Sub(w.Start)
}

// KeyStats aggregates one state key within a window.
type KeyStats struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Count           int64   `json:"count"`
}

// Summary is the reduced view of a set of intervals over a window.
type Summary struct {
	PerKey              map[fleet.StateKey]KeyStats `json:"per_key"`
	TotalSeconds        float64                     `json:"total_seconds"`
	OutsideDepotSeconds float64                     `json:"outside_depot_seconds"`
}

// Percentage returns the key's share of the total, 0 when nothing was
// observed.
func (s *Summary) Percentage(key fleet.StateKey) float64 {
	if s.TotalSeconds <= 0 {
		return 0
	}
	return 100 * s.PerKey[key].DurationSeconds / s.TotalSeconds
}

// Summarize reduces intervals to per-key duration sums and counts. Intervals
// partially outside the window are clipped to the window bounds, never
// discarded; an interval entirely outside contributes nothing. Open intervals
// are still running and count up to the window end.
func Summarize(intervals []fleet.StateInterval, window Window) *Summary {
	s := &Summary{PerKey: make(map[fleet.StateKey]KeyStats)}

	for _, iv := range intervals {
		start := iv.StartTime
		end := window.End
		if iv.EndTime != nil {
			end = *iv.EndTime
		}

		if start.Before(window.Start) {
			start = window.Start
		}
		if end.After(window.End) {
			end = window.End
		}
		if !end.After(start) {
			continue
		}

		seconds := end.Sub(start).Seconds()
		stats := s.PerKey[iv.Key]
		stats.DurationSeconds += seconds
		stats.Count++
		s.PerKey[iv.Key] = stats

		s.TotalSeconds += seconds
		if iv.Key != fleet.StateWorkshop && iv.Key != fleet.StateAtDepot {
			s.OutsideDepotSeconds += seconds
		}
	}
	return s
}
