package segment

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
	"github.com/fleetworks-data/dispatch.report/internal/units"
)

// Zone is a circular geofenced area. Depot and workshop zones drive the
// at-depot and workshop state keys.
type Zone struct {
	ID           string         `json:"id"`
	Type         fleet.ZoneType `json:"type"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	RadiusMeters float64        `json:"radius_meters"`
}

// Contains reports whether the sample lies inside the zone.
func (z Zone) Contains(s fleet.PositionSample) bool {
	return units.HaversineMeters(z.Latitude, z.Longitude, s.Latitude, s.Longitude) <= z.RadiusMeters
}

// LoadZones reads zone definitions from a JSON file.
func LoadZones(fsys fsutil.FileSystem, path string) ([]Zone, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones %s: %w", path, err)
	}
	var zones []Zone
	if err := json.Unmarshal(data, &zones); err != nil {
		return nil, fmt.Errorf("parse zones %s: %w", path, err)
	}
	for _, z := range zones {
		if z.ID == "" || z.RadiusMeters <= 0 {
			return nil, fmt.Errorf("zone %q: id and a positive radius are required", z.ID)
		}
		if z.Type != fleet.ZoneDepot && z.Type != fleet.ZoneWorkshop {
			return nil, fmt.Errorf("zone %q: unknown type %q", z.ID, z.Type)
		}
	}
	return zones, nil
}

// DeriveGeofenceEvents turns a position stream into zone entry/exit events by
// tracking per-zone occupancy across samples. A vehicle already inside a zone
// at the first sample produces an entry at that sample's time.
func DeriveGeofenceEvents(samples []fleet.PositionSample, zones []Zone) []fleet.GeofenceEvent {
	var events []fleet.GeofenceEvent
	inside := make(map[string]bool, len(zones))

	for _, s := range samples {
		for _, z := range zones {
			in := z.Contains(s)
			if in == inside[z.ID] {
				continue
			}
			inside[z.ID] = in
			ev := fleet.GeofenceEvent{
				Timestamp: s.Timestamp,
				Zone:      z.Type,
				ZoneID:    z.ID,
			}
			if in {
				ev.Event = fleet.GeofenceEntry
			} else {
				ev.Event = fleet.GeofenceExit
			}
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}
