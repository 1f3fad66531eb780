package utils

import "math"

// EarthRadiusMeters is the mean Earth radius used for all distance maths
const EarthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in metres between two points
// given in decimal degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox is a lat/lng rectangle enclosing a circle
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	// WrapsLongitude is set when the circle crosses the antimeridian or a
	// pole; callers should then skip the longitude filter.
	WrapsLongitude bool
}

// BoundingBoxAround returns a rectangle that contains every point within
// radiusMeters of (lat, lng). It is a prefilter only; exact distance must
// still be checked with Haversine.
func BoundingBoxAround(lat, lng, radiusMeters float64) BoundingBox {
	dLat := toDegrees(radiusMeters / EarthRadiusMeters)
	box := BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLng, box.MaxLng, box.WrapsLongitude = -180, 180, true
		return box
	}

	dLng := toDegrees(radiusMeters / (EarthRadiusMeters * math.Cos(toRadians(lat))))
	box.MinLng = lng - dLng
	box.MaxLng = lng + dLng
	if box.MinLng < -180 || box.MaxLng > 180 {
		box.MinLng, box.MaxLng, box.WrapsLongitude = -180, 180, true
	}
	return box
}

// Contains reports whether the point lies in the box
func (b BoundingBox) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.WrapsLongitude {
		return true
	}
	return lng >= b.MinLng && lng <= b.MaxLng
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
