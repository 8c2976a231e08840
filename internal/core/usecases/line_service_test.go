package usecases_test

import (
	"context"
	"math"
	"testing"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/usecases"
)

// --- Mock UtilityLineRepository ---

type mockLineRepo struct {
	upsertFn      func(ctx context.Context, line *domain.UtilityLine) error
	upsertBatchFn func(ctx context.Context, lines []domain.UtilityLine) error
	getByIDFn     func(ctx context.Context, id string) (*domain.UtilityLine, error)
	listBySiteFn  func(ctx context.Context, siteID string) ([]domain.UtilityLine, error)
	findNearFn    func(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error)
	statsFn       func(ctx context.Context, siteID string) (*domain.SiteStats, error)
}

func (m *mockLineRepo) Upsert(ctx context.Context, line *domain.UtilityLine) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, line)
	}
	return nil
}

func (m *mockLineRepo) UpsertBatch(ctx context.Context, lines []domain.UtilityLine) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, lines)
	}
	return nil
}

func (m *mockLineRepo) GetByID(ctx context.Context, id string) (*domain.UtilityLine, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLineRepo) ListBySite(ctx context.Context, siteID string) ([]domain.UtilityLine, error) {
	if m.listBySiteFn != nil {
		return m.listBySiteFn(ctx, siteID)
	}
	return nil, nil
}

func (m *mockLineRepo) FindNear(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error) {
	if m.findNearFn != nil {
		return m.findNearFn(ctx, siteID, lat, lon, radiusMeters, limit)
	}
	return nil, nil
}

func (m *mockLineRepo) StatsBySite(ctx context.Context, siteID string) (*domain.SiteStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, siteID)
	}
	return nil, nil
}

// --- Tests ---

func TestLineService_FindNearby_ClampLimit(t *testing.T) {
	called := false
	repo := &mockLineRepo{
		findNearFn: func(ctx context.Context, siteID string, lat, lon, radius float64, limit int) ([]domain.UtilityLine, error) {
			called = true
			if limit != 100 {
				t.Errorf("expected limit clamped to 100, got %d", limit)
			}
			return nil, nil
		},
	}

	svc := usecases.NewLineService(repo, nil)
	_, _ = svc.FindNearby(context.Background(), "site-1", 39.73, -104.99, 100, 9999)
	if !called {
		t.Error("repo was not called")
	}
}

func TestLineService_Upsert_RejectsMalformed(t *testing.T) {
	svc := usecases.NewLineService(&mockLineRepo{}, nil)

	err := svc.Upsert(context.Background(), &domain.UtilityLine{
		SiteID:   "site-1",
		Kind:     domain.KindGas,
		Class:    domain.ClassMain,
		Vertices: []domain.GeoPoint{{Lat: 39.73, Lon: -104.99}},
	})
	if err == nil {
		t.Fatal("expected error for single-vertex line")
	}
}

func TestLineService_Upsert_AssignsID(t *testing.T) {
	var stored *domain.UtilityLine
	repo := &mockLineRepo{
		upsertFn: func(ctx context.Context, line *domain.UtilityLine) error {
			stored = line
			return nil
		},
	}

	svc := usecases.NewLineService(repo, nil)
	line := lineThrough("", domain.KindWater, domain.ClassService, digPoint)
	line.SiteID = "site-1"
	if err := svc.Upsert(context.Background(), &line); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored.ID == "" {
		t.Fatal("expected an id assigned on upsert")
	}
	if stored.UpdatedAt.IsZero() || stored.CreatedAt.IsZero() {
		t.Error("expected timestamps set on upsert")
	}
}

func TestLineService_ImportGeoJSON(t *testing.T) {
	fixture := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"kind":"gas","class":"main","material":"steel"},
		 "geometry":{"type":"LineString","coordinates":[[-104.9913,39.7392],[-104.9893,39.7392]]}},
		{"type":"Feature","properties":{"kind":"water"},
		 "geometry":{"type":"LineString","coordinates":[[-104.9913,39.7393],[-104.9893,39.7393]]}},
		{"type":"Feature","properties":{"kind":"unobtainium"},
		 "geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
		{"type":"Feature","properties":{"kind":"sewer"},
		 "geometry":{"type":"Point","coordinates":[-104.99,39.73]}}
	]}`)

	var batch []domain.UtilityLine
	repo := &mockLineRepo{
		upsertBatchFn: func(ctx context.Context, lines []domain.UtilityLine) error {
			batch = lines
			return nil
		},
	}

	svc := usecases.NewLineService(repo, nil)
	imported, skipped, err := svc.ImportGeoJSON(context.Background(), "site-1", fixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported != 2 || skipped != 2 {
		t.Fatalf("expected 2 imported and 2 skipped, got %d and %d", imported, skipped)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 lines in batch, got %d", len(batch))
	}

	gas := batch[0]
	if gas.Kind != domain.KindGas || gas.Class != domain.ClassMain {
		t.Errorf("expected gas main, got %s %s", gas.Kind, gas.Class)
	}
	if gas.SiteID != "site-1" {
		t.Errorf("expected site-1, got %s", gas.SiteID)
	}
	if gas.ID == "" {
		t.Error("expected an id assigned to imported line")
	}
	if gas.Metadata["material"] != "steel" {
		t.Errorf("expected material carried into metadata, got %v", gas.Metadata)
	}
	if len(gas.Vertices) != 2 || math.Abs(gas.Vertices[0].Lat-39.7392) > 1e-9 {
		t.Errorf("expected lat/lon order preserved from geojson, got %+v", gas.Vertices)
	}

	water := batch[1]
	if water.Class != domain.ClassMain {
		t.Errorf("expected class to default to main, got %s", water.Class)
	}
}

func TestLineService_ImportGeoJSON_BadDocument(t *testing.T) {
	svc := usecases.NewLineService(&mockLineRepo{}, nil)
	_, _, err := svc.ImportGeoJSON(context.Background(), "site-1", []byte(`{"type":"bogus"`))
	if err == nil {
		t.Fatal("expected error for malformed document")
	}
}

func TestLineService_NearestMain(t *testing.T) {
	var gotRadius float64
	repo := &mockLineRepo{
		findNearFn: func(ctx context.Context, siteID string, lat, lon, radius float64, limit int) ([]domain.UtilityLine, error) {
			gotRadius = radius
			return []domain.UtilityLine{
				lineThrough("gas-main", domain.KindGas, domain.ClassMain, northOfM(digPoint, 4)),
				lineThrough("water-main", domain.KindWater, domain.ClassMain, northOfM(digPoint, 8)),
			}, nil
		},
	}

	svc := usecases.NewLineService(repo, nil)
	conn, err := svc.NearestMain(context.Background(), "site-1", digPoint, domain.KindWater, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn == nil || conn.Line.ID != "water-main" {
		t.Fatalf("expected water-main, got %+v", conn)
	}
	if math.Abs(conn.DistanceMeters-8) > 0.1 {
		t.Errorf("expected distance near 8 m, got %f", conn.DistanceMeters)
	}
	// The repo query is padded past the kernel's cut-off.
	if gotRadius <= 30 {
		t.Errorf("expected padded query radius beyond 30, got %f", gotRadius)
	}
}

func TestLineService_NearestMain_UnknownKind(t *testing.T) {
	svc := usecases.NewLineService(&mockLineRepo{}, nil)
	_, err := svc.NearestMain(context.Background(), "site-1", digPoint, "steam", 30)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
