package usecases

import (
	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/pkg/geospatial"
)

// FindNearbyMain returns the nearest main line of the given kind within
// maxDistanceMeters of point, with the exact snap point on it for drawing a
// new service connection. It returns nil when no main qualifies. Malformed
// lines are ignored. Stateless; safe to call from any goroutine.
func FindNearbyMain(point domain.GeoPoint, kind domain.UtilityKind, maxDistanceMeters float64, lines []domain.UtilityLine) *domain.MainConnection {
	var best *domain.MainConnection
	for i := range lines {
		line := &lines[i]
		if line.Class != domain.ClassMain || line.Kind != kind {
			continue
		}
		if line.Validate() != nil {
			continue
		}
		nearest, ok := geospatial.MinDistanceToPolyline(point, line.Vertices)
		if !ok || nearest.DistanceMeters > maxDistanceMeters {
			continue
		}
		if best == nil || nearest.DistanceMeters < best.DistanceMeters {
			best = &domain.MainConnection{
				Line:           *line,
				SnapPoint:      nearest.Point,
				DistanceMeters: nearest.DistanceMeters,
				SegmentIndex:   nearest.SegmentIndex,
				T:              nearest.T,
			}
		}
	}
	return best
}
