//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/digsentry/digsentry/internal/adapters/http"
	"github.com/digsentry/digsentry/internal/adapters/postgres"
	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/usecases"
	"github.com/digsentry/digsentry/internal/pkg/config"
)

// setupTestDB connects to the test database and returns a clean DB instance.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("digsentry-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	db := &postgres.DB{Pool: pool}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return db
}

// setupTestDeps creates dependencies with real DB and repos, no cache.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	return &handler.Dependencies{
		Sites:     usecases.NewSiteService(postgres.NewSiteRepo(db)),
		Lines:     usecases.NewLineService(postgres.NewLineRepo(db), nil),
		Incidents: usecases.NewIncidentService(postgres.NewIncidentRepo(db)),
		Events:    postgres.NewAlertEventRepo(db),
		DB:        db,
	}
}

// seedTestSite inserts a test site and returns its UUID.
func seedTestSite(t *testing.T, db *postgres.DB, slug string) string {
	ctx := context.Background()
	var id string
	if err := db.Pool.QueryRow(ctx, `
		INSERT INTO sites (slug, name, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, slug, "Test Site "+slug).Scan(&id); err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return id
}

// seedTestLine inserts a water main running east-west through downtown
// Denver and returns its ID.
func seedTestLine(t *testing.T, db *postgres.DB, siteID, lineID string) string {
	ctx := context.Background()
	var id string
	if err := db.Pool.QueryRow(ctx, `
		INSERT INTO utility_lines (id, site_id, kind, class, geom, vertices)
		VALUES ($1, $2, 'water', 'main',
			ST_GeogFromText('LINESTRING(-104.9913 39.7392, -104.9893 39.7392)'),
			'[{"lat":39.7392,"lon":-104.9913},{"lat":39.7392,"lon":-104.9893}]'::jsonb)
		ON CONFLICT (id) DO UPDATE SET updated_at = now()
		RETURNING id
	`, lineID, siteID).Scan(&id); err != nil {
		t.Fatalf("seed line: %v", err)
	}
	return id
}

// TestListSites_Integration_WithRealDB tests site listing against real database.
func TestListSites_Integration_WithRealDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	seedTestSite(t, db, "itest_riverside")
	seedTestSite(t, db, "itest_elm_water")

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites?limit=200", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.ExcavationSite `json:"data"`
		Pagination struct{ Total int }     `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if result.Pagination.Total < 2 {
		t.Errorf("expected at least 2 sites, got %d", result.Pagination.Total)
	}
}

// TestGetSite_Integration tests slug lookup against real database.
func TestGetSite_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	slug := "itest_" + time.Now().Format("20060102150405")
	seedTestSite(t, db, slug)

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/"+slug, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var site domain.ExcavationSite
	if err := json.NewDecoder(resp.Body).Decode(&site); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if site.Slug != slug {
		t.Errorf("expected slug %s, got %s", slug, site.Slug)
	}
}

// TestNearbyLines_Integration tests the PostGIS radius query against real database.
func TestNearbyLines_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	siteID := seedTestSite(t, db, "itest_spatial")
	seedTestLine(t, db, siteID, "itest-w-1")

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	// Query point sits a few meters south of the seeded main.
	req := httptest.NewRequest("GET", "/v1/sites/itest_spatial/lines/nearby?lat=39.73915&lon=-104.9903&radius=50", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var lines []domain.UtilityLine
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(lines) == 0 {
		t.Error("expected at least 1 nearby line, got 0")
	}
}

// TestNearestMain_Integration tests main snapping end to end: PostGIS narrows
// the candidates, the distance kernel picks the snap point.
func TestNearestMain_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	siteID := seedTestSite(t, db, "itest_connect")
	seedTestLine(t, db, siteID, "itest-w-conn")

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/itest_connect/connect?lat=39.73915&lon=-104.9903&kind=water", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var conn domain.MainConnection
	if err := json.NewDecoder(resp.Body).Decode(&conn); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if conn.Line.ID != "itest-w-conn" {
		t.Errorf("expected itest-w-conn, got %q", conn.Line.ID)
	}
	if conn.DistanceMeters <= 0 || conn.DistanceMeters > 10 {
		t.Errorf("expected snap within 10m, got %.2f", conn.DistanceMeters)
	}
}

// TestSiteStats_Integration tests the stats aggregate against real database.
func TestSiteStats_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	siteID := seedTestSite(t, db, "itest_stats")
	seedTestLine(t, db, siteID, "itest-w-stats")

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/itest_stats/stats", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Stats domain.SiteStats `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if result.Stats.LineCount < 1 || result.Stats.MainCount < 1 {
		t.Errorf("expected seeded line in stats, got %+v", result.Stats)
	}
}
