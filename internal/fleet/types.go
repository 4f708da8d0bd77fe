// Package fleet defines the shared domain model for the session
// reconstruction pipeline: sensor file records, reconstructed sessions,
// the raw sample streams and the derived operational-state intervals.
package fleet

import (
	"fmt"
	"time"
)

// SensorKind identifies one of the four per-vehicle sensor streams.
type SensorKind string

const (
	KindBus      SensorKind = "bus"
	KindPosition SensorKind = "position"
	KindInertial SensorKind = "inertial"
	KindBeacon   SensorKind = "beacon"
)

// AllSensorKinds lists every kind in matching order. The bus stream comes
// first because it anchors session matching.
var AllSensorKinds = []SensorKind{KindBus, KindPosition, KindInertial, KindBeacon}

// IsValid reports whether the kind is one of the four known streams.
func (k SensorKind) IsValid() bool {
	switch k {
	case KindBus, KindPosition, KindInertial, KindBeacon:
		return true
	}
	return false
}

// FileRecord is one raw sensor file discovered by the catalog walk,
// annotated with its recovered real-world timestamp. RecoveredAt is nil when
// timestamp recovery failed; such records are excluded from matching.
type FileRecord struct {
	Path        string
	Filename    string
	VehicleID   string
	Kind        SensorKind
	RecoveredAt *time.Time
}

// Timestamped reports whether the record carries a recovered timestamp.
func (r FileRecord) Timestamped() bool {
	return r.RecoveredAt != nil
}

// Session is one reconstructed vehicle outing: exactly one file per sensor
// kind, all within the configured tolerance of the bus anchor (or accepted
// under the beacon date-only degraded rule). Sessions are immutable once
// emitted by the matcher.
type Session struct {
	VehicleID  string
	Date       time.Time // midnight of the bus anchor's day
	StartTime  time.Time // earliest recovered timestamp across the four files
	EndTime    time.Time // latest recovered timestamp across the four files
	Files      map[SensorKind]FileRecord
	MatchScore float64
	// Degraded marks sessions accepted because the beacon file only carried
	// a date, not a time of day.
	Degraded bool
}

// GeofenceEventType distinguishes zone boundary crossings.
type GeofenceEventType string

const (
	GeofenceEntry GeofenceEventType = "entry"
	GeofenceExit  GeofenceEventType = "exit"
)

// ZoneType is the category of a geofenced zone.
type ZoneType string

const (
	ZoneDepot    ZoneType = "depot"
	ZoneWorkshop ZoneType = "workshop"
)

// GeofenceEvent is a single zone entry or exit.
type GeofenceEvent struct {
	Timestamp time.Time
	Event     GeofenceEventType
	Zone      ZoneType
	ZoneID    string
}

// PositionSample is one positioning fix with instantaneous speed.
type PositionSample struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Speed     float64
}

// BeaconSample is one reading of the emergency-light signal.
type BeaconSample struct {
	Timestamp time.Time
	On        bool
}

// StateKey is one of the six mutually-exclusive operational states.
type StateKey int

const (
	StateWorkshop  StateKey = 0
	StateAtDepot   StateKey = 1
	StateDispatch  StateKey = 2
	StateOnScene   StateKey = 3
	StateEndOfOp   StateKey = 4
	StateReturning StateKey = 5
)

// StateKeys lists every state key in numeric order.
var StateKeys = []StateKey{
	StateWorkshop, StateAtDepot, StateDispatch,
	StateOnScene, StateEndOfOp, StateReturning,
}

func (k StateKey) String() string {
	switch k {
	case StateWorkshop:
		return "workshop"
	case StateAtDepot:
		return "at-depot"
	case StateDispatch:
		return "emergency-dispatch"
	case StateOnScene:
		return "on-scene"
	case StateEndOfOp:
		return "end-of-operation"
	case StateReturning:
		return "returning-to-depot"
	}
	return fmt.Sprintf("state-%d", int(k))
}

// IntervalOrigin records which detector produced a state interval.
type IntervalOrigin string

const (
	OriginGeofence IntervalOrigin = "geofence"
	OriginBeacon   IntervalOrigin = "beacon"
	OriginPosition IntervalOrigin = "position"
	OriginComputed IntervalOrigin = "computed"
)

// StateInterval is one derived operational-state span for a vehicle. An
// interval with a nil EndTime is open: it is persisted as-is and closed by a
// later run, never fabricated shut. Intervals for the same vehicle never
// overlap.
type StateInterval struct {
	VehicleID       string
	OrganizationID  string
	Key             StateKey
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds *float64
	Origin          IntervalOrigin
	SourceZoneID    string
}

// Open reports whether the interval has not been closed yet.
func (si *StateInterval) Open() bool {
	return si.EndTime == nil
}

// CloseAt closes the interval at end and fills in the duration.
func (si *StateInterval) CloseAt(end time.Time) {
	e := end
	si.EndTime = &e
	d := end.Sub(si.StartTime).Seconds()
	si.DurationSeconds = &d
}

// Duration returns the interval length, or zero for open intervals.
func (si *StateInterval) Duration() time.Duration {
	if si.EndTime == nil {
		return 0
	}
	return si.EndTime.Sub(si.StartTime)
}
