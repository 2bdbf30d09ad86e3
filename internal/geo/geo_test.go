package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_ZeroDistance(t *testing.T) {
	d := DistanceMeters(13.0827, 80.2707, 13.0827, 80.2707)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// One degree of latitude is roughly 111.2 km.
	d := DistanceMeters(13.0, 80.0, 14.0, 80.0)
	assert.InDelta(t, 111195, d, 200)
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := DistanceMeters(13.05, 80.21, 13.09, 80.27)
	b := DistanceMeters(13.09, 80.27, 13.05, 80.21)
	assert.InDelta(t, a, b, 1e-9)
}

func TestPathLengthKm(t *testing.T) {
	coords := []Coordinate{
		{Lat: 13.0, Lon: 80.0},
		{Lat: 13.0, Lon: 80.0}, // duplicate point adds nothing
		{Lat: 14.0, Lon: 80.0},
	}
	assert.InDelta(t, 111.195, PathLengthKm(coords), 0.5)

	assert.Zero(t, PathLengthKm(nil))
	assert.Zero(t, PathLengthKm(coords[:1]))
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Lat: 13.08, Lon: 80.27}.Valid())
	assert.False(t, Coordinate{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Coordinate{Lat: 0, Lon: -181}.Valid())
}
