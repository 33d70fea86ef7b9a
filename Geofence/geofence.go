package Geofence

import "math"

// Earth radius in meters
const EarthRadius = 6371000.0

// DefaultRadius is the acceptance radius used when a PDV has none configured.
const DefaultRadius = 100.0

// Distance returns the great-circle distance in meters between two coordinates
// using the haversine formula. NaN inputs propagate to a NaN result.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// WithinRadius reports whether a measured distance falls inside the acceptance
// radius. Invalid numeric input counts as out of range rather than panicking.
func WithinRadius(distance, radius float64) bool {
	if math.IsNaN(distance) || math.IsNaN(radius) {
		return false
	}
	return distance <= radius
}
