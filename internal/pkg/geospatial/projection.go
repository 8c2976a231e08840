package geospatial

import (
	"math"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// ProjectToPlane maps a point to local planar coordinates (meters east and
// north) using an equirectangular projection about the given origin. The
// projection depends only on the origin, never on any rendering viewport or
// zoom level, so distances derived from it are reproducible anywhere.
func ProjectToPlane(origin, p domain.GeoPoint) (x, y float64) {
	x = earthRadiusM * toRad(p.Lon-origin.Lon) * math.Cos(toRad(origin.Lat))
	y = earthRadiusM * toRad(p.Lat-origin.Lat)
	return x, y
}

// UnprojectFromPlane inverts ProjectToPlane for the same origin.
func UnprojectFromPlane(origin domain.GeoPoint, x, y float64) domain.GeoPoint {
	lat := origin.Lat + toDeg(y/earthRadiusM)
	lon := origin.Lon
	if cosLat := math.Cos(toRad(origin.Lat)); cosLat != 0 {
		lon += toDeg(x / (earthRadiusM * cosLat))
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}
}

// SegmentPoint is the closest point on a segment to a query point.
type SegmentPoint struct {
	Point          domain.GeoPoint
	T              float64 // projection scalar, clamped to [0,1]
	DistanceMeters float64
}

// ClosestPointOnSegment projects p onto the segment [a,b] in a local plane
// about a, clamps the projection scalar to [0,1], unprojects the result back
// to geographic coordinates, and measures the geographic distance from p.
// A degenerate segment (a and b nearly coincident) yields t=0 and the
// distance to a.
func ClosestPointOnSegment(p, a, b domain.GeoPoint) SegmentPoint {
	px, py := ProjectToPlane(a, p)
	bx, by := ProjectToPlane(a, b)

	segLenSq := bx*bx + by*by
	if segLenSq < 1e-12 {
		return SegmentPoint{Point: a, T: 0, DistanceMeters: Haversine(p.Lat, p.Lon, a.Lat, a.Lon)}
	}

	t := (px*bx + py*by) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := UnprojectFromPlane(a, bx*t, by*t)
	return SegmentPoint{
		Point:          closest,
		T:              t,
		DistanceMeters: Haversine(p.Lat, p.Lon, closest.Lat, closest.Lon),
	}
}
