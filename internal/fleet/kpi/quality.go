package kpi

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// MatchQuality summarizes how well a run's sessions matched, for spotting
// clock drift or file coverage regressions across runs.
type MatchQuality struct {
	SessionCount  int     `json:"session_count"`
	DegradedCount int     `json:"degraded_count"`
	MeanScore     float64 `json:"mean_score"`
	StdDevScore   float64 `json:"stddev_score"`
	MinScore      float64 `json:"min_score"`
	MedianScore   float64 `json:"median_score"`
}

// AssessMatchQuality computes score statistics over a run's sessions.
func AssessMatchQuality(sessions []fleet.Session) MatchQuality {
	q := MatchQuality{SessionCount: len(sessions)}
	if len(sessions) == 0 {
		return q
	}

	scores := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		scores = append(scores, s.MatchScore)
		if s.Degraded {
			q.DegradedCount++
		}
	}

	// Quantile needs sorted input.
	sort.Float64s(scores)
	q.MeanScore = stat.Mean(scores, nil)
	if len(scores) > 1 {
		q.StdDevScore = stat.StdDev(scores, nil)
	}
	q.MinScore = scores[0]
	q.MedianScore = stat.Quantile(0.5, stat.Empirical, scores, nil)
	return q
}
