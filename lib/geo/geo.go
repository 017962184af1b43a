package geo

import (
	"math"

	"qrpass/entity"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371008.8

// Distance returns the great-circle distance in meters between two
// coordinates, computed with the haversine formula. Accurate to well under
// a meter at geofence scales.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Within reports whether the location falls inside the geofence circle.
func Within(loc *entity.Location, fence *entity.Geofence) bool {
	if loc == nil || fence == nil {
		return false
	}
	return Distance(loc.Lat, loc.Lng, fence.Lat, fence.Lng) <= fence.RadiusMeters
}
