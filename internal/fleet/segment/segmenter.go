// Package segment derives operational-state intervals from a session's
// geofence, position and beacon streams. Each detector runs a single forward
// pass and closes intervals before opening new ones, so intervals for one
// vehicle never overlap by construction.
package segment

import (
	"sort"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/config"
	"github.com/fleetworks-data/dispatch.report/internal/fleet"
)

// Input carries one session's event streams, sorted or sortable by time.
type Input struct {
	VehicleID      string
	OrganizationID string
	Geofence       []fleet.GeofenceEvent
	Positions      []fleet.PositionSample
	Beacons        []fleet.BeaconSample
}

// Segmenter turns session streams into state intervals.
type Segmenter struct {
	cfg *config.PipelineConfig
}

func New(cfg *config.PipelineConfig) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// Segment derives the full interval set for one session. Missing streams
// degrade the affected keys (no geofence data means no workshop/at-depot
// intervals, no beacon data means no dispatch/returning intervals); nothing
// here is fatal and nothing is fabricated. Samples with a zero timestamp are
// skipped and tallied.
func (sg *Segmenter) Segment(in Input) ([]fleet.StateInterval, fleet.DiscardLog) {
	discards := fleet.NewDiscardLog()
	geofence := sortedEvents(dropZeroEvents(in.Geofence, fleet.KindPosition, discards))
	positions := sortedPositions(dropZeroPositions(in.Positions, discards))
	beacons := sortedBeacons(dropZeroBeacons(in.Beacons, discards))

	occupancy := sg.zoneIntervals(in, geofence)
	stops := DetectStops(positions, sg.cfg)
	dispatches := sg.dispatchIntervals(in, geofence, beacons, stops)
	scenes := sg.onSceneIntervals(in, stops, occupancy)
	returns := sg.returningIntervals(in, geofence, beacons, dispatches, scenes)
	endOfOps := sg.endOfOpIntervals(in, scenes, returns)

	intervals := make([]fleet.StateInterval, 0,
		len(occupancy)+len(dispatches)+len(scenes)+len(returns)+len(endOfOps))
	intervals = append(intervals, occupancy...)
	intervals = append(intervals, dispatches...)
	intervals = append(intervals, scenes...)
	intervals = append(intervals, returns...)
	intervals = append(intervals, endOfOps...)

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].StartTime.Before(intervals[j].StartTime)
	})
	return intervals, discards
}

// zoneIntervals pairs geofence entries with their exits per zone: keys 0
// (workshop) and 1 (at depot). An entry with no exit stays open.
func (sg *Segmenter) zoneIntervals(in Input, events []fleet.GeofenceEvent) []fleet.StateInterval {
	var intervals []fleet.StateInterval
	open := make(map[string]*fleet.StateInterval)

	for _, ev := range events {
		switch ev.Event {
		case fleet.GeofenceEntry:
			if open[ev.ZoneID] != nil {
				continue
			}
			key := fleet.StateAtDepot
			if ev.Zone == fleet.ZoneWorkshop {
				key = fleet.StateWorkshop
			}
			open[ev.ZoneID] = &fleet.StateInterval{
				VehicleID:      in.VehicleID,
				OrganizationID: in.OrganizationID,
				Key:            key,
				StartTime:      ev.Timestamp,
				Origin:         fleet.OriginGeofence,
				SourceZoneID:   ev.ZoneID,
			}
		case fleet.GeofenceExit:
			iv := open[ev.ZoneID]
			if iv == nil {
				// Exit without a matching entry: the vehicle was inside the
				// zone before the stream began. Nothing to close.
				continue
			}
			iv.CloseAt(ev.Timestamp)
			intervals = append(intervals, *iv)
			delete(open, ev.ZoneID)
		}
	}
	for _, iv := range open {
		intervals = append(intervals, *iv)
	}
	return intervals
}

// dispatchIntervals detects key 2: a depot exit corroborated by a beacon-on
// within the corroboration window opens a dispatch, closed by the first
// subsequent qualifying stop or beacon-off, whichever comes first. A dispatch
// with neither stays open.
func (sg *Segmenter) dispatchIntervals(in Input, events []fleet.GeofenceEvent,
	beacons []fleet.BeaconSample, stops []Stop) []fleet.StateInterval {

	corroboration := sg.cfg.GetBeaconCorroboration()
	var intervals []fleet.StateInterval

	for _, ev := range events {
		if ev.Event != fleet.GeofenceExit || ev.Zone != fleet.ZoneDepot {
			continue
		}
		if !beaconOnNear(beacons, ev.Timestamp, corroboration) {
			// Uncorroborated exit: not classified as a dispatch.
			continue
		}

		iv := fleet.StateInterval{
			VehicleID:      in.VehicleID,
			OrganizationID: in.OrganizationID,
			Key:            fleet.StateDispatch,
			StartTime:      ev.Timestamp,
			Origin:         fleet.OriginBeacon,
			SourceZoneID:   ev.ZoneID,
		}

		var end time.Time
		if t, ok := firstStopAfter(stops, ev.Timestamp); ok {
			end = t
		}
		if t, ok := firstBeaconOffAfter(beacons, ev.Timestamp); ok {
			if end.IsZero() || t.Before(end) {
				end = t
			}
		}
		if !end.IsZero() {
			iv.CloseAt(end)
		}
		intervals = append(intervals, iv)
	}
	return intervals
}

// onSceneIntervals emits key 3 for every qualifying stop whose start falls
// outside all zone occupancies; stops inside a depot or workshop belong to
// keys 0/1.
func (sg *Segmenter) onSceneIntervals(in Input, stops []Stop, occupancy []fleet.StateInterval) []fleet.StateInterval {
	var intervals []fleet.StateInterval
	for _, stop := range stops {
		if insideOccupancy(occupancy, stop.Start) {
			continue
		}
		iv := fleet.StateInterval{
			VehicleID:      in.VehicleID,
			OrganizationID: in.OrganizationID,
			Key:            fleet.StateOnScene,
			StartTime:      stop.Start,
			Origin:         fleet.OriginPosition,
		}
		iv.CloseAt(stop.End)
		intervals = append(intervals, iv)
	}
	return intervals
}

// returningIntervals detects key 5: for each depot entry, scan backward to
// the most recent beacon-off that is not inside a dispatch interval. The
// start is clamped past every closed on-scene interval overlapping the span
// to the entry, so a stop en route never overlaps the returning interval.
func (sg *Segmenter) returningIntervals(in Input, events []fleet.GeofenceEvent,
	beacons []fleet.BeaconSample, dispatches, scenes []fleet.StateInterval) []fleet.StateInterval {

	var intervals []fleet.StateInterval
	for _, ev := range events {
		if ev.Event != fleet.GeofenceEntry || ev.Zone != fleet.ZoneDepot {
			continue
		}

		off, ok := lastBeaconOffBefore(beacons, ev.Timestamp, dispatches)
		if !ok {
			continue
		}
		start := off
		// Scenes are sorted by start, so one forward pass pushes the
		// returning start past each overlapping stop in turn.
		for _, sc := range scenes {
			if sc.EndTime == nil {
				continue
			}
			if sc.StartTime.Before(ev.Timestamp) && sc.EndTime.After(start) {
				start = *sc.EndTime
			}
		}
		if !start.Before(ev.Timestamp) {
			continue
		}

		iv := fleet.StateInterval{
			VehicleID:      in.VehicleID,
			OrganizationID: in.OrganizationID,
			Key:            fleet.StateReturning,
			StartTime:      start,
			Origin:         fleet.OriginBeacon,
			SourceZoneID:   ev.ZoneID,
		}
		iv.CloseAt(ev.Timestamp)
		intervals = append(intervals, iv)
	}
	return intervals
}

// endOfOpIntervals derives key 4 by subtraction: for every returning
// interval, the latest closed on-scene interval ending before it spans a gap
// to the returning start; a positive gap becomes an end-of-operation
// interval. No direct sensor triggers this state.
func (sg *Segmenter) endOfOpIntervals(in Input, scenes, returns []fleet.StateInterval) []fleet.StateInterval {
	var intervals []fleet.StateInterval
	for _, ret := range returns {
		var latest *time.Time
		for i := range scenes {
			end := scenes[i].EndTime
			if end == nil || end.After(ret.StartTime) {
				continue
			}
			if latest == nil || end.After(*latest) {
				latest = end
			}
		}
		if latest == nil || !latest.Before(ret.StartTime) {
			continue
		}

		iv := fleet.StateInterval{
			VehicleID:      in.VehicleID,
			OrganizationID: in.OrganizationID,
			Key:            fleet.StateEndOfOp,
			StartTime:      *latest,
			Origin:         fleet.OriginComputed,
		}
		iv.CloseAt(ret.StartTime)
		intervals = append(intervals, iv)
	}
	return intervals
}

func beaconOnNear(beacons []fleet.BeaconSample, t time.Time, window time.Duration) bool {
	for _, b := range beacons {
		if !b.On {
			continue
		}
		d := b.Timestamp.Sub(t)
		if d < 0 {
			d = -d
		}
		if d <= window {
			return true
		}
	}
	return false
}

func firstStopAfter(stops []Stop, t time.Time) (time.Time, bool) {
	for _, s := range stops {
		if s.Start.After(t) {
			return s.Start, true
		}
	}
	return time.Time{}, false
}

func firstBeaconOffAfter(beacons []fleet.BeaconSample, t time.Time) (time.Time, bool) {
	for _, b := range beacons {
		if b.Timestamp.After(t) && !b.On {
			return b.Timestamp, true
		}
	}
	return time.Time{}, false
}

// lastBeaconOffBefore finds the most recent off transition before t that is
// not strictly inside a dispatch interval. An off that closes a dispatch sits
// on the interval's end bound and stays eligible.
func lastBeaconOffBefore(beacons []fleet.BeaconSample, t time.Time, dispatches []fleet.StateInterval) (time.Time, bool) {
	for i := len(beacons) - 1; i >= 0; i-- {
		b := beacons[i]
		if b.On || !b.Timestamp.Before(t) {
			continue
		}
		if strictlyInside(dispatches, b.Timestamp) {
			continue
		}
		return b.Timestamp, true
	}
	return time.Time{}, false
}

func strictlyInside(intervals []fleet.StateInterval, t time.Time) bool {
	for _, iv := range intervals {
		if iv.EndTime == nil {
			if t.After(iv.StartTime) {
				return true
			}
			continue
		}
		if t.After(iv.StartTime) && t.Before(*iv.EndTime) {
			return true
		}
	}
	return false
}

func insideOccupancy(occupancy []fleet.StateInterval, t time.Time) bool {
	for _, iv := range occupancy {
		if t.Before(iv.StartTime) {
			continue
		}
		if iv.EndTime == nil || t.Before(*iv.EndTime) {
			return true
		}
	}
	return false
}

func sortedEvents(events []fleet.GeofenceEvent) []fleet.GeofenceEvent {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func sortedPositions(samples []fleet.PositionSample) []fleet.PositionSample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples
}

func sortedBeacons(samples []fleet.BeaconSample) []fleet.BeaconSample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples
}

func dropZeroEvents(events []fleet.GeofenceEvent, kind fleet.SensorKind, discards fleet.DiscardLog) []fleet.GeofenceEvent {
	kept := events[:0]
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			discards.Add(kind, 1)
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

func dropZeroPositions(samples []fleet.PositionSample, discards fleet.DiscardLog) []fleet.PositionSample {
	kept := samples[:0]
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			discards.Add(fleet.KindPosition, 1)
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func dropZeroBeacons(samples []fleet.BeaconSample, discards fleet.DiscardLog) []fleet.BeaconSample {
	kept := samples[:0]
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			discards.Add(fleet.KindBeacon, 1)
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
