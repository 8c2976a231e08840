package usecases_test

import (
	"math"
	"testing"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/usecases"
)

// northOfM returns a point the given number of meters due north of p.
func northOfM(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + meters/metersPerDegLat, Lon: p.Lon}
}

func TestFindNearbyMain_ReturnsNearestSameKind(t *testing.T) {
	lines := []domain.UtilityLine{
		lineThrough("gas-main", domain.KindGas, domain.ClassMain, northOfM(digPoint, 5)),
		lineThrough("water-near", domain.KindWater, domain.ClassMain, northOfM(digPoint, 10)),
		lineThrough("water-far", domain.KindWater, domain.ClassMain, northOfM(digPoint, 30)),
	}

	conn := usecases.FindNearbyMain(digPoint, domain.KindWater, 50, lines)
	if conn == nil {
		t.Fatal("expected a connection, got nil")
	}
	if conn.Line.ID != "water-near" {
		t.Fatalf("expected water-near, got %s", conn.Line.ID)
	}
	if math.Abs(conn.DistanceMeters-10) > 0.1 {
		t.Errorf("expected distance near 10 m, got %f", conn.DistanceMeters)
	}
	if math.Abs(conn.T-0.5) > 0.01 {
		t.Errorf("expected snap near segment midpoint, got t=%f", conn.T)
	}
	if conn.SegmentIndex != 0 {
		t.Errorf("expected segment 0, got %d", conn.SegmentIndex)
	}
	if math.Abs(conn.SnapPoint.Lon-digPoint.Lon) > 1e-6 {
		t.Errorf("expected snap point due north of the query, got lon %f", conn.SnapPoint.Lon)
	}
}

func TestFindNearbyMain_IgnoresServiceLines(t *testing.T) {
	lines := []domain.UtilityLine{
		lineThrough("water-service", domain.KindWater, domain.ClassService, northOfM(digPoint, 2)),
		lineThrough("water-main", domain.KindWater, domain.ClassMain, northOfM(digPoint, 10)),
	}

	conn := usecases.FindNearbyMain(digPoint, domain.KindWater, 50, lines)
	if conn == nil {
		t.Fatal("expected a connection, got nil")
	}
	if conn.Line.ID != "water-main" {
		t.Errorf("expected the main despite a closer service line, got %s", conn.Line.ID)
	}
}

func TestFindNearbyMain_NoneWithinRange(t *testing.T) {
	lines := []domain.UtilityLine{
		lineThrough("water-main", domain.KindWater, domain.ClassMain, northOfM(digPoint, 30)),
	}
	if conn := usecases.FindNearbyMain(digPoint, domain.KindWater, 20, lines); conn != nil {
		t.Fatalf("expected nil beyond max distance, got %+v", conn)
	}
}

func TestFindNearbyMain_NoMatchingKind(t *testing.T) {
	lines := []domain.UtilityLine{
		lineThrough("gas-main", domain.KindGas, domain.ClassMain, northOfM(digPoint, 5)),
	}
	if conn := usecases.FindNearbyMain(digPoint, domain.KindWater, 50, lines); conn != nil {
		t.Fatalf("expected nil with no matching kind, got %+v", conn)
	}
}

func TestFindNearbyMain_SkipsMalformed(t *testing.T) {
	lines := []domain.UtilityLine{
		{ID: "water-bad", Kind: domain.KindWater, Class: domain.ClassMain,
			Vertices: []domain.GeoPoint{{Lat: digPoint.Lat, Lon: digPoint.Lon}}},
		lineThrough("water-main", domain.KindWater, domain.ClassMain, northOfM(digPoint, 10)),
	}

	conn := usecases.FindNearbyMain(digPoint, domain.KindWater, 50, lines)
	if conn == nil || conn.Line.ID != "water-main" {
		t.Fatalf("expected water-main, got %+v", conn)
	}
}
