package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2023, 5, 10, hour, min, sec, 0, time.UTC)
}

// stationaryAt builds a zero-speed sample at fixed coordinates.
func stationaryAt(t time.Time) fleet.PositionSample {
	return fleet.PositionSample{Timestamp: t, Latitude: 40.5000, Longitude: -3.8000, Speed: 0}
}

// movingAt builds a fast sample offset away from the stationary point.
func movingAt(t time.Time, offset float64) fleet.PositionSample {
	return fleet.PositionSample{Timestamp: t, Latitude: 40.5000 + offset, Longitude: -3.8000, Speed: 35}
}

func depotEvent(ev fleet.GeofenceEventType, t time.Time) fleet.GeofenceEvent {
	return fleet.GeofenceEvent{Timestamp: t, Event: ev, Zone: fleet.ZoneDepot, ZoneID: "depot-1"}
}

func TestSegmentFullOuting(t *testing.T) {
	cfg := &config.PipelineConfig{}
	sg := New(cfg)

	in := Input{
		VehicleID:      "V-042",
		OrganizationID: "org-1",
		Geofence: []fleet.GeofenceEvent{
			depotEvent(fleet.GeofenceEntry, at(7, 0, 0)),
			depotEvent(fleet.GeofenceExit, at(8, 15, 0)),
			depotEvent(fleet.GeofenceEntry, at(10, 45, 0)),
		},
		Positions: buildOutingPositions(),
		Beacons: []fleet.BeaconSample{
			{Timestamp: at(8, 15, 40), On: true},
			{Timestamp: at(10, 20, 0), On: false},
		},
	}

	intervals, discards := sg.Segment(in)
	require.Equal(t, int64(0), discards.Total())
	require.Len(t, intervals, 6)

	// Sorted by start: depot stay, dispatch, on scene, end of operation,
	// returning, then the open depot stay.
	assert.Equal(t, fleet.StateAtDepot, intervals[0].Key)
	assert.Equal(t, at(7, 0, 0), intervals[0].StartTime)
	require.NotNil(t, intervals[0].EndTime)
	assert.Equal(t, at(8, 15, 0), *intervals[0].EndTime)

	dispatch := intervals[1]
	assert.Equal(t, fleet.StateDispatch, dispatch.Key)
	assert.Equal(t, at(8, 15, 0), dispatch.StartTime)
	require.NotNil(t, dispatch.EndTime)
	assert.Equal(t, at(8, 45, 0), *dispatch.EndTime)

	scene := intervals[2]
	assert.Equal(t, fleet.StateOnScene, scene.Key)
	assert.Equal(t, at(8, 45, 0), scene.StartTime)
	require.NotNil(t, scene.EndTime)
	assert.Equal(t, at(10, 15, 0), *scene.EndTime)
	require.NotNil(t, scene.DurationSeconds)
	assert.InDelta(t, 5400.0, *scene.DurationSeconds, 1e-9)

	endOfOp := intervals[3]
	assert.Equal(t, fleet.StateEndOfOp, endOfOp.Key)
	assert.Equal(t, at(10, 15, 0), endOfOp.StartTime)
	require.NotNil(t, endOfOp.EndTime)
	assert.Equal(t, at(10, 20, 0), *endOfOp.EndTime)
	require.NotNil(t, endOfOp.DurationSeconds)
	assert.InDelta(t, 300.0, *endOfOp.DurationSeconds, 1e-9)

	returning := intervals[4]
	assert.Equal(t, fleet.StateReturning, returning.Key)
	assert.Equal(t, at(10, 20, 0), returning.StartTime)
	require.NotNil(t, returning.EndTime)
	assert.Equal(t, at(10, 45, 0), *returning.EndTime)

	assert.Equal(t, fleet.StateAtDepot, intervals[5].Key)
	assert.True(t, intervals[5].Open())

	assertNoOverlap(t, intervals)
}

// buildOutingPositions covers: driving out, stationary on scene 08:45-10:15,
// then driving back.
func buildOutingPositions() []fleet.PositionSample {
	var samples []fleet.PositionSample
	samples = append(samples,
		movingAt(at(8, 20, 0), 0.05),
		movingAt(at(8, 30, 0), 0.03),
		movingAt(at(8, 40, 0), 0.01),
	)
	for m := 45; m <= 60; m += 5 {
		samples = append(samples, stationaryAt(at(8, m, 0)))
	}
	for m := 5; m <= 60; m += 5 {
		samples = append(samples, stationaryAt(at(9, m, 0)))
	}
	for m := 5; m <= 15; m += 5 {
		samples = append(samples, stationaryAt(at(10, m, 0)))
	}
	samples = append(samples,
		movingAt(at(10, 18, 0), 0.01),
		movingAt(at(10, 30, 0), 0.03),
	)
	return samples
}

func assertNoOverlap(t *testing.T, intervals []fleet.StateInterval) {
	t.Helper()
	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			a, b := intervals[i], intervals[j]
			if a.EndTime == nil || b.EndTime == nil {
				continue
			}
			overlap := a.StartTime.Before(*b.EndTime) && b.StartTime.Before(*a.EndTime)
			assert.False(t, overlap, "intervals %d (%v) and %d (%v) overlap", i, a.Key, j, b.Key)
		}
	}
}

func TestSegmentDispatchOpensAtExit(t *testing.T) {
	sg := New(&config.PipelineConfig{})
	intervals, _ := sg.Segment(Input{
		VehicleID: "V-042",
		Geofence:  []fleet.GeofenceEvent{depotEvent(fleet.GeofenceExit, at(8, 15, 0))},
		Beacons:   []fleet.BeaconSample{{Timestamp: at(8, 15, 40), On: true}},
	})

	require.Len(t, intervals, 1)
	assert.Equal(t, fleet.StateDispatch, intervals[0].Key)
	assert.Equal(t, at(8, 15, 0), intervals[0].StartTime)
	// No stop and no beacon-off ever observed: the dispatch stays open.
	assert.True(t, intervals[0].Open())
}

func TestSegmentUncorroboratedExitNotDispatch(t *testing.T) {
	sg := New(&config.PipelineConfig{})
	intervals, _ := sg.Segment(Input{
		VehicleID: "V-042",
		Geofence:  []fleet.GeofenceEvent{depotEvent(fleet.GeofenceExit, at(8, 15, 0))},
		// Beacon comes on ten minutes after the exit, outside the window.
		Beacons: []fleet.BeaconSample{{Timestamp: at(8, 25, 0), On: true}},
	})
	assert.Empty(t, intervals)
}

func TestSegmentNoBeaconOffNoReturning(t *testing.T) {
	sg := New(&config.PipelineConfig{})
	intervals, _ := sg.Segment(Input{
		VehicleID: "V-042",
		Geofence:  []fleet.GeofenceEvent{depotEvent(fleet.GeofenceEntry, at(10, 45, 0))},
		Beacons:   []fleet.BeaconSample{{Timestamp: at(8, 15, 40), On: true}},
	})

	for _, iv := range intervals {
		assert.NotEqual(t, fleet.StateReturning, iv.Key, "returning interval fabricated without a beacon-off")
	}
}

func TestSegmentStopDuringReturnStaysDisjoint(t *testing.T) {
	sg := New(&config.PipelineConfig{})

	var positions []fleet.PositionSample
	positions = append(positions,
		movingAt(at(10, 0, 0), 0.05),
		movingAt(at(10, 5, 0), 0.03),
	)
	for m := 10; m <= 20; m += 2 {
		positions = append(positions, stationaryAt(at(10, m, 0)))
	}
	positions = append(positions, movingAt(at(10, 22, 0), 0.02))

	in := Input{
		VehicleID: "V-042",
		Geofence: []fleet.GeofenceEvent{
			depotEvent(fleet.GeofenceEntry, at(10, 30, 0)),
		},
		Positions: positions,
		Beacons: []fleet.BeaconSample{
			{Timestamp: at(9, 50, 0), On: true},
			{Timestamp: at(10, 0, 0), On: false},
		},
	}

	intervals, _ := sg.Segment(in)

	var returning, scene *fleet.StateInterval
	for i := range intervals {
		switch intervals[i].Key {
		case fleet.StateReturning:
			returning = &intervals[i]
		case fleet.StateOnScene:
			scene = &intervals[i]
		}
	}
	require.NotNil(t, scene)
	require.NotNil(t, scene.EndTime)
	assert.Equal(t, at(10, 10, 0), scene.StartTime)

	// The beacon went off at 10:00 but the returning leg only starts once
	// the en-route stop ends; the two intervals never overlap.
	require.NotNil(t, returning)
	assert.Equal(t, *scene.EndTime, returning.StartTime)
	require.NotNil(t, returning.EndTime)
	assert.Equal(t, at(10, 30, 0), *returning.EndTime)
	assertNoOverlap(t, intervals)
}

func TestSegmentStopInsideDepotSuppressed(t *testing.T) {
	sg := New(&config.PipelineConfig{})

	var samples []fleet.PositionSample
	for m := 0; m <= 30; m += 5 {
		samples = append(samples, stationaryAt(at(9, m, 0)))
	}
	intervals, _ := sg.Segment(Input{
		VehicleID: "V-042",
		Geofence: []fleet.GeofenceEvent{
			depotEvent(fleet.GeofenceEntry, at(8, 0, 0)),
		},
		Positions: samples,
	})

	require.Len(t, intervals, 1)
	assert.Equal(t, fleet.StateAtDepot, intervals[0].Key)
}

func TestSegmentMissingStreamsDegrade(t *testing.T) {
	sg := New(&config.PipelineConfig{})
	intervals, discards := sg.Segment(Input{VehicleID: "V-042"})
	assert.Empty(t, intervals)
	assert.Equal(t, int64(0), discards.Total())
}

func TestSegmentZeroTimestampsTallied(t *testing.T) {
	sg := New(&config.PipelineConfig{})
	_, discards := sg.Segment(Input{
		VehicleID: "V-042",
		Positions: []fleet.PositionSample{{Latitude: 40.5, Longitude: -3.8}},
		Beacons:   []fleet.BeaconSample{{On: true}},
	})
	assert.Equal(t, int64(1), discards[fleet.KindPosition])
	assert.Equal(t, int64(1), discards[fleet.KindBeacon])
}

func TestDetectStops(t *testing.T) {
	cfg := &config.PipelineConfig{}

	t.Run("basic stop", func(t *testing.T) {
		samples := []fleet.PositionSample{
			movingAt(at(8, 0, 0), 0.01),
			stationaryAt(at(8, 5, 0)),
			stationaryAt(at(8, 7, 0)),
			stationaryAt(at(8, 9, 0)),
			movingAt(at(8, 10, 0), 0.01),
		}
		stops := DetectStops(samples, cfg)
		require.Len(t, stops, 1)
		assert.Equal(t, at(8, 5, 0), stops[0].Start)
		assert.Equal(t, at(8, 9, 0), stops[0].End)
	})

	t.Run("short pause below minimum duration", func(t *testing.T) {
		samples := []fleet.PositionSample{
			stationaryAt(at(8, 5, 0)),
			stationaryAt(at(8, 5, 30)),
			movingAt(at(8, 6, 0), 0.01),
		}
		assert.Empty(t, DetectStops(samples, cfg))
	})

	t.Run("slow drift beyond radius splits the run", func(t *testing.T) {
		// ~0.002 degrees of latitude is ~220m, well past the 50m radius,
		// even at walking speed.
		samples := []fleet.PositionSample{
			stationaryAt(at(8, 0, 0)),
			stationaryAt(at(8, 2, 0)),
			{Timestamp: at(8, 4, 0), Latitude: 40.5020, Longitude: -3.8000, Speed: 2},
			{Timestamp: at(8, 6, 0), Latitude: 40.5020, Longitude: -3.8000, Speed: 2},
			{Timestamp: at(8, 8, 0), Latitude: 40.5020, Longitude: -3.8000, Speed: 2},
		}
		stops := DetectStops(samples, cfg)
		require.Len(t, stops, 2)
		assert.Equal(t, at(8, 0, 0), stops[0].Start)
		assert.Equal(t, at(8, 4, 0), stops[1].Start)
	})

	t.Run("trailing stop at stream end", func(t *testing.T) {
		samples := []fleet.PositionSample{
			stationaryAt(at(8, 0, 0)),
			stationaryAt(at(8, 2, 0)),
			stationaryAt(at(8, 4, 0)),
		}
		stops := DetectStops(samples, cfg)
		require.Len(t, stops, 1)
		assert.Equal(t, at(8, 4, 0), stops[0].End)
	})
}
