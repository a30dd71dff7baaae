// Package geo provides great-circle distance helpers for the
// recommendation ranker.
package geo

import (
	"math"

	"github.com/jmercadier/chargeshare/core/model"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two
// coordinates in kilometers.
func DistanceKm(a, b model.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
