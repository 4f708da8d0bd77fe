package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks-data/dispatch.report/internal/fleet"
	"github.com/fleetworks-data/dispatch.report/internal/fsutil"
)

var depotZone = Zone{
	ID:           "depot-1",
	Type:         fleet.ZoneDepot,
	Latitude:     40.4168,
	Longitude:    -3.7038,
	RadiusMeters: 150,
}

func TestLoadZones(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("config/zones.json", []byte(`[
		{"id": "depot-1", "type": "depot", "latitude": 40.4168, "longitude": -3.7038, "radius_meters": 150},
		{"id": "shop-1", "type": "workshop", "latitude": 40.4200, "longitude": -3.7100, "radius_meters": 80}
	]`), 0644)

	zones, err := LoadZones(fsys, "config/zones.json")
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, fleet.ZoneDepot, zones[0].Type)
	assert.Equal(t, "shop-1", zones[1].ID)
}

func TestLoadZonesRejectsUnknownType(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("config/zones.json",
		[]byte(`[{"id": "z", "type": "parking", "latitude": 1, "longitude": 1, "radius_meters": 10}]`), 0644)

	_, err := LoadZones(fsys, "config/zones.json")
	assert.Error(t, err)
}

func TestLoadZonesRejectsZeroRadius(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("config/zones.json",
		[]byte(`[{"id": "z", "type": "depot", "latitude": 1, "longitude": 1}]`), 0644)

	_, err := LoadZones(fsys, "config/zones.json")
	assert.Error(t, err)
}

func TestDeriveGeofenceEvents(t *testing.T) {
	inDepot := fleet.PositionSample{Latitude: 40.4168, Longitude: -3.7038, Speed: 0}
	outside := fleet.PositionSample{Latitude: 40.5000, Longitude: -3.8000, Speed: 30}

	samples := []fleet.PositionSample{
		{Timestamp: at(8, 0, 0), Latitude: inDepot.Latitude, Longitude: inDepot.Longitude},
		{Timestamp: at(8, 5, 0), Latitude: inDepot.Latitude, Longitude: inDepot.Longitude},
		{Timestamp: at(8, 15, 0), Latitude: outside.Latitude, Longitude: outside.Longitude},
		{Timestamp: at(10, 45, 0), Latitude: inDepot.Latitude, Longitude: inDepot.Longitude},
	}

	events := DeriveGeofenceEvents(samples, []Zone{depotZone})
	require.Len(t, events, 3)

	assert.Equal(t, fleet.GeofenceEntry, events[0].Event)
	assert.Equal(t, at(8, 0, 0), events[0].Timestamp)
	assert.Equal(t, "depot-1", events[0].ZoneID)

	assert.Equal(t, fleet.GeofenceExit, events[1].Event)
	assert.Equal(t, at(8, 15, 0), events[1].Timestamp)

	assert.Equal(t, fleet.GeofenceEntry, events[2].Event)
	assert.Equal(t, at(10, 45, 0), events[2].Timestamp)
}

func TestDeriveGeofenceEventsNeverInside(t *testing.T) {
	samples := []fleet.PositionSample{
		{Timestamp: at(8, 0, 0), Latitude: 40.5, Longitude: -3.8},
		{Timestamp: at(8, 5, 0), Latitude: 40.6, Longitude: -3.9},
	}
	assert.Empty(t, DeriveGeofenceEvents(samples, []Zone{depotZone}))
}
