package segment

import (
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/units"
)

// Stop is one contiguous stationary run in a position stream.
type Stop struct {
	Start time.Time
	End   time.Time
	// Anchor is the first sample of the run; the radius check is measured
	// against it, not against a running centroid.
	Anchor fleet.PositionSample
}

// Duration returns the stop length.
func (s Stop) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// DetectStops finds contiguous runs where speed stays below the movement
// threshold and position stays within the stationary radius of the run's
// first sample, for longer than the minimum duration. Movement beyond the
// radius or above the threshold closes the run.
func DetectStops(samples []fleet.PositionSample, cfg *config.PipelineConfig) []Stop {
	speedThreshold := cfg.GetStationarySpeedThreshold()
	radius := cfg.GetStationaryRadiusMeters()
	minDuration := cfg.GetStationaryMinDuration()

	var (
		stops   []Stop
		current *Stop
	)

	flush := func() {
		if current == nil {
			return
		}
		if current.Duration() > minDuration {
			stops = append(stops, *current)
		}
		current = nil
	}

	for _, s := range samples {
		if s.Speed >= speedThreshold {
			// The run ends where the vehicle was last known stationary, not
			// at the moving sample.
			flush()
			continue
		}
		if current != nil {
			dist := units.HaversineMeters(
				current.Anchor.Latitude, current.Anchor.Longitude,
				s.Latitude, s.Longitude)
			if dist <= radius {
				current.End = s.Timestamp
				continue
			}
			// Slow drift past the radius: this sample anchors a new run.
			flush()
		}
		current = &Stop{Start: s.Timestamp, End: s.Timestamp, Anchor: s}
	}
	flush()
	return stops
}
