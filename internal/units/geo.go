package units

import "math"

// earthRadiusMeters is the mean earth radius used for haversine distance.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance in metres between two
// WGS84 coordinates. Over the tens-of-metres scale the stop detector works
// at, the haversine approximation is more than accurate enough.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
