package models

import "math"

const earthRadiusKm = 6371.0

// Point is a geographical location in decimal degrees (WGS84).
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// DistanceKm returns the great-circle distance to another point in kilometers.
func (p Point) DistanceKm(o Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := o.Lat * math.Pi / 180
	dLat := (o.Lat - p.Lat) * math.Pi / 180
	dLon := (o.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
