// Package geo provides coordinate types and great-circle distance math.
package geo

import "math"

const earthRadiusMeters = 6371000

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is a plausible point on Earth.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DistanceMeters returns the great-circle (haversine) distance between two
// points in meters.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lon1r := lon1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	lon2r := lon2 * math.Pi / 180

	dlat := lat2r - lat1r
	dlon := lon2r - lon1r

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * earthRadiusMeters
}

// DistanceKm returns the great-circle distance between two points in kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceMeters(lat1, lon1, lat2, lon2) / 1000
}

// PathLengthKm sums the distances between consecutive coordinates.
func PathLengthKm(coords []Coordinate) float64 {
	total := 0.0
	for i := 0; i+1 < len(coords); i++ {
		total += DistanceKm(coords[i].Lat, coords[i].Lon, coords[i+1].Lat, coords[i+1].Lon)
	}
	return total
}
