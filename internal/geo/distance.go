// Package geo computes great-circle distances for service-radius matching.
package geo

import (
	"math"

	"github.com/sudo-init-do/lexhub/internal/apperr"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate fails with an InvalidCoordinate error when the point is out of range.
func (p Point) Validate() error {
	return validate(p.Lat, p.Lon)
}

// DistanceTo returns the haversine distance in meters from p to q.
func (p Point) DistanceTo(q Point) (float64, error) {
	return Distance(p.Lat, p.Lon, q.Lat, q.Lon)
}

// Distance returns the great-circle distance in meters between two points.
// Accurate to within 1% of the geodesic distance for regional (<500 km) spans.
func Distance(latA, lonA, latB, lonB float64) (float64, error) {
	if err := validate(latA, lonA); err != nil {
		return 0, err
	}
	if err := validate(latB, lonB); err != nil {
		return 0, err
	}

	phiA := radians(latA)
	phiB := radians(latB)
	dPhi := radians(latB - latA)
	dLambda := radians(lonB - lonA)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phiA)*math.Cos(phiB)*sinLambda*sinLambda
	// rounding can push a marginally above 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a)), nil
}

func validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return apperr.New(apperr.KindInvalidCoordinate, "geo.distance", "coordinate is not a finite number")
	}
	if lat < -90 || lat > 90 {
		return apperr.Newf(apperr.KindInvalidCoordinate, "geo.distance", "latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return apperr.Newf(apperr.KindInvalidCoordinate, "geo.distance", "longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
