package community

import "math"

const earthRadiusKm = 6371.0

type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// WithinDistance is the discover list filter. Communities without
// coordinates never match.
func WithinDistance(n Nearby, maxKm float64) bool {
	return n.DistanceKm != nil && *n.DistanceKm <= maxKm
}
