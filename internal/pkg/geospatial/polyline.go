package geospatial

import (
	"math"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// PolylinePoint is the minimum-distance result against a polyline.
type PolylinePoint struct {
	Point          domain.GeoPoint
	SegmentIndex   int
	T              float64
	DistanceMeters float64
}

// MinDistanceToPolyline returns the closest point on the polyline to p,
// iterating consecutive vertex pairs and keeping the minimum. ok is false
// when the polyline has fewer than two vertices; the result then carries an
// infinite distance so naive comparisons still behave.
func MinDistanceToPolyline(p domain.GeoPoint, vertices []domain.GeoPoint) (PolylinePoint, bool) {
	if len(vertices) < 2 {
		return PolylinePoint{DistanceMeters: math.Inf(1)}, false
	}

	best := PolylinePoint{DistanceMeters: math.Inf(1)}
	for i := 0; i < len(vertices)-1; i++ {
		sp := ClosestPointOnSegment(p, vertices[i], vertices[i+1])
		if sp.DistanceMeters < best.DistanceMeters {
			best = PolylinePoint{
				Point:          sp.Point,
				SegmentIndex:   i,
				T:              sp.T,
				DistanceMeters: sp.DistanceMeters,
			}
		}
	}
	return best, true
}

// MetersToFeet converts a metric distance to the feet shown to crews.
func MetersToFeet(m float64) float64 {
	return m * domain.FeetPerMeter
}

// PolylineBounds computes the bounding box of a vertex sequence.
func PolylineBounds(vertices []domain.GeoPoint) domain.Bounds {
	b := domain.Bounds{
		MinLat: math.Inf(1), MinLon: math.Inf(1),
		MaxLat: math.Inf(-1), MaxLon: math.Inf(-1),
	}
	for _, v := range vertices {
		b.MinLat = math.Min(b.MinLat, v.Lat)
		b.MinLon = math.Min(b.MinLon, v.Lon)
		b.MaxLat = math.Max(b.MaxLat, v.Lat)
		b.MaxLon = math.Max(b.MaxLon, v.Lon)
	}
	return b
}

// ExpandBounds grows a box by the given distance in meters on every side.
// A point outside the expanded box is guaranteed to be farther than that
// distance from everything inside the original box, which makes it a safe
// prefilter before exact polyline distance computation.
func ExpandBounds(b domain.Bounds, meters float64) domain.Bounds {
	latDelta := meters / 111320.0
	cosLat := math.Cos(toRad((b.MinLat + b.MaxLat) / 2))
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonDelta := meters / (111320.0 * cosLat)
	return domain.Bounds{
		MinLat: b.MinLat - latDelta,
		MinLon: b.MinLon - lonDelta,
		MaxLat: b.MaxLat + latDelta,
		MaxLon: b.MaxLon + lonDelta,
	}
}
