package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/lexhub/internal/apperr"
)

var (
	bucharest = Point{Lat: 44.4268, Lon: 26.1025}
	cluj      = Point{Lat: 46.7712, Lon: 23.6236}
)

func TestDistance(t *testing.T) {
	t.Run("Should measure Bucharest to Cluj at about 324 km", func(t *testing.T) {
		d, err := bucharest.DistanceTo(cluj)
		require.NoError(t, err)
		assert.InDelta(t, 324_000, d, 3_000)
	})

	t.Run("Should be zero for identical points", func(t *testing.T) {
		d, err := Distance(bucharest.Lat, bucharest.Lon, bucharest.Lat, bucharest.Lon)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d)
	})

	t.Run("Should match one degree of meridian arc", func(t *testing.T) {
		d, err := Distance(0, 0, 1, 0)
		require.NoError(t, err)
		assert.InDelta(t, EarthRadiusMeters*math.Pi/180, d, 0.001)
		// WGS-84 geodesic for the same arc is 110,574 m
		assert.InEpsilon(t, 110_574, d, 0.01)
	})

	t.Run("Should handle antipodal points", func(t *testing.T) {
		d, err := Distance(0, 0, 0, 180)
		require.NoError(t, err)
		assert.InDelta(t, math.Pi*EarthRadiusMeters, d, 1)
	})
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{bucharest, cluj},
		{{Lat: 45.7489, Lon: 21.2087}, {Lat: 47.1585, Lon: 27.6014}},
		{{Lat: -33.8688, Lon: 151.2093}, {Lat: -34.9285, Lon: 138.6007}},
		{{Lat: 0.5, Lon: 179.9}, {Lat: -0.5, Lon: -179.9}},
	}
	for _, p := range pairs {
		ab, err := p[0].DistanceTo(p[1])
		require.NoError(t, err)
		ba, err := p[1].DistanceTo(p[0])
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-6)
	}
}

func TestDistance_InvalidCoordinate(t *testing.T) {
	cases := []struct {
		name                   string
		latA, lonA, latB, lonB float64
	}{
		{name: "latitude above range", latA: 90.1, lonA: 0, latB: 0, lonB: 0},
		{name: "latitude below range", latA: 0, lonA: 0, latB: -91, lonB: 0},
		{name: "longitude above range", latA: 0, lonA: 180.5, latB: 0, lonB: 0},
		{name: "longitude below range", latA: 0, lonA: 0, latB: 0, lonB: -200},
		{name: "not a number", latA: math.NaN(), lonA: 0, latB: 0, lonB: 0},
		{name: "infinite", latA: 0, lonA: math.Inf(1), latB: 0, lonB: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Distance(tc.latA, tc.lonA, tc.latB, tc.lonB)
			assert.ErrorIs(t, err, apperr.ErrInvalidCoordinate)
		})
	}

	t.Run("Should accept range bounds", func(t *testing.T) {
		_, err := Distance(-90, -180, 90, 180)
		assert.NoError(t, err)
	})
}
