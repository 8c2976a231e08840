package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"

	handler "github.com/digsentry/digsentry/internal/adapters/http"
	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/usecases"
)

// ---- Mock repositories ----

type mockSiteRepo struct {
	createFn    func(ctx context.Context, site *domain.ExcavationSite) error
	getByIDFn   func(ctx context.Context, id string) (*domain.ExcavationSite, error)
	getBySlugFn func(ctx context.Context, slug string) (*domain.ExcavationSite, error)
	listFn      func(ctx context.Context) ([]domain.ExcavationSite, error)
	updateFn    func(ctx context.Context, id string, status domain.SiteStatus) error
}

func (m *mockSiteRepo) Create(ctx context.Context, site *domain.ExcavationSite) error {
	if m.createFn != nil {
		return m.createFn(ctx, site)
	}
	return nil
}
func (m *mockSiteRepo) GetByID(ctx context.Context, id string) (*domain.ExcavationSite, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, errors.New("not found")
}
func (m *mockSiteRepo) GetBySlug(ctx context.Context, slug string) (*domain.ExcavationSite, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, errors.New("not found")
}
func (m *mockSiteRepo) List(ctx context.Context) ([]domain.ExcavationSite, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockSiteRepo) UpdateStatus(ctx context.Context, id string, status domain.SiteStatus) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, status)
	}
	return nil
}

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
	return nil, errors.New("not found")
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
	return &domain.SiteStats{SiteID: siteID}, nil
}

type mockAlertRepo struct {
	listFn func(ctx context.Context, siteID string, limit int) ([]domain.AlertEvent, error)
}

func (m *mockAlertRepo) Insert(ctx context.Context, event *domain.AlertEvent) error { return nil }
func (m *mockAlertRepo) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.AlertEvent, error) {
	if m.listFn != nil {
		return m.listFn(ctx, siteID, limit)
	}
	return nil, nil
}

type mockIncidentRepo struct {
	getByIDFn   func(ctx context.Context, id string) (*domain.Incident, error)
	setStatusFn func(ctx context.Context, id, status string) error
	listOpenFn  func(ctx context.Context, siteID string) ([]domain.Incident, error)
}

func (m *mockIncidentRepo) Create(ctx context.Context, incident *domain.Incident) error { return nil }
func (m *mockIncidentRepo) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, errors.New("not found")
}
func (m *mockIncidentRepo) SetStatus(ctx context.Context, id, status string) error {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, status)
	}
	return nil
}
func (m *mockIncidentRepo) ListOpenBySite(ctx context.Context, siteID string) ([]domain.Incident, error) {
	if m.listOpenFn != nil {
		return m.listOpenFn(ctx, siteID)
	}
	return nil, nil
}

type mockEventPublisher struct {
	samples  []*domain.SampleEvent
	commands []*domain.CommandEvent
}

func (m *mockEventPublisher) PublishSample(ctx context.Context, event *domain.SampleEvent) error {
	m.samples = append(m.samples, event)
	return nil
}
func (m *mockEventPublisher) PublishPose(ctx context.Context, event *domain.PoseEvent) error {
	return nil
}
func (m *mockEventPublisher) PublishTick(ctx context.Context, event *domain.TickEvent) error {
	return nil
}
func (m *mockEventPublisher) PublishCommand(ctx context.Context, event *domain.CommandEvent) error {
	m.commands = append(m.commands, event)
	return nil
}
func (m *mockEventPublisher) PublishBroadcast(ctx context.Context, subject string, data []byte) error {
	return nil
}

type mockStateCache struct {
	data map[string][]byte
}

func (m *mockStateCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("valkey nil message")
}
func (m *mockStateCache) Ping(ctx context.Context) error { return nil }

// ---- Test helpers ----

func testSite() *domain.ExcavationSite {
	return &domain.ExcavationSite{
		ID:     "7f0c2c5e-0dba-4f3c-9f3e-2a3a5f8b9c10",
		Slug:   "riverside-gas",
		Name:   "Riverside Gas Replacement",
		Status: domain.SiteActive,
	}
}

// withKnownSite makes the given site resolvable by both UUID and slug.
func withKnownSite(site *domain.ExcavationSite, repo *mockSiteRepo) func(*handler.Dependencies) {
	if repo == nil {
		repo = &mockSiteRepo{}
	}
	if repo.getByIDFn == nil {
		repo.getByIDFn = func(_ context.Context, id string) (*domain.ExcavationSite, error) {
			if id == site.ID {
				return site, nil
			}
			return nil, errors.New("not found")
		}
	}
	if repo.getBySlugFn == nil {
		repo.getBySlugFn = func(_ context.Context, slug string) (*domain.ExcavationSite, error) {
			if slug == site.Slug {
				return site, nil
			}
			return nil, errors.New("not found")
		}
	}
	return func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(repo)
	}
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	deps := &handler.Dependencies{
		Sites:     usecases.NewSiteService(&mockSiteRepo{}),
		Lines:     usecases.NewLineService(&mockLineRepo{}, nil),
		Incidents: usecases.NewIncidentService(&mockIncidentRepo{}),
		Events:    &mockAlertRepo{},
		Publisher: &mockEventPublisher{},
		Cache:     &mockStateCache{data: map[string][]byte{}},
	}
	for _, opt := range opts {
		opt(deps)
	}
	return deps
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

// ---- Site endpoints ----

func TestListSites(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(&mockSiteRepo{
			listFn: func(ctx context.Context) ([]domain.ExcavationSite, error) {
				return []domain.ExcavationSite{
					{ID: "s1", Slug: "riverside-gas", Name: "Riverside", Status: domain.SiteActive},
					{ID: "s2", Slug: "elm-water", Name: "Elm Street", Status: domain.SiteActive},
				}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.ExcavationSite `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 sites, got %d", len(result.Data))
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected total 2, got %d", result.Pagination.Total)
	}

	if got := resp.Header.Get("X-API-Version"); got != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", got)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="first"`) {
		t.Errorf("expected Link header with rel=first, got %q", link)
	}
}

func TestListSites_Pagination(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(&mockSiteRepo{
			listFn: func(ctx context.Context) ([]domain.ExcavationSite, error) {
				var sites []domain.ExcavationSite
				for i := 1; i <= 5; i++ {
					sites = append(sites, domain.ExcavationSite{
						ID:   fmt.Sprintf("s%d", i),
						Slug: fmt.Sprintf("site-%d", i),
					})
				}
				return sites, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites?offset=2&limit=2", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}

	var result struct {
		Data       []domain.ExcavationSite `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Data) != 2 || result.Data[0].Slug != "site-3" {
		t.Errorf("expected window [site-3 site-4], got %+v", result.Data)
	}
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}

	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected next and prev links, got %q", link)
	}
}

func TestGetSite_BySlug(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil)))

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got domain.ExcavationSite
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != site.ID {
		t.Errorf("expected site %s, got %s", site.ID, got.ID)
	}
}

func TestGetSite_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/sites/nope", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("expected code not_found, got %q", apiErr.Code)
	}
}

func TestCreateSite(t *testing.T) {
	var created *domain.ExcavationSite
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(&mockSiteRepo{
			createFn: func(ctx context.Context, site *domain.ExcavationSite) error {
				created = site
				return nil
			},
		})
	})
	app := setupApp(deps)

	body := `{"name":"Riverside Gas Replacement","center":{"lat":39.7392,"lon":-104.9903}}`
	req := httptest.NewRequest("POST", "/v1/sites", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var got domain.ExcavationSite
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Slug != "riverside-gas-replacement" {
		t.Errorf("expected derived slug, got %q", got.Slug)
	}
	if got.ID == "" {
		t.Error("expected assigned site ID")
	}
	if created == nil || created.Center == nil || created.Center.Lat != 39.7392 {
		t.Errorf("expected center persisted, got %+v", created)
	}
}

func TestCreateSite_SlugConflict(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(&mockSiteRepo{
			createFn: func(ctx context.Context, site *domain.ExcavationSite) error {
				return &pgconn.PgError{Code: "23505"}
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("POST", "/v1/sites", strings.NewReader(`{"name":"Riverside"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	var apiErr handler.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if apiErr.Code != "conflict" {
		t.Errorf("expected code conflict, got %q", apiErr.Code)
	}
}

func TestCreateSite_EmptyName(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/sites", strings.NewReader(`{"name":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestArchiveSite(t *testing.T) {
	site := testSite()
	var gotStatus domain.SiteStatus
	repo := &mockSiteRepo{
		updateFn: func(ctx context.Context, id string, status domain.SiteStatus) error {
			gotStatus = status
			return nil
		},
	}
	app := setupApp(makeDeps(withKnownSite(site, repo)))

	req := httptest.NewRequest("POST", "/v1/sites/"+site.ID+"/archive", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotStatus != domain.SiteArchived {
		t.Errorf("expected archived status written, got %q", gotStatus)
	}

	var got domain.ExcavationSite
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != domain.SiteArchived {
		t.Errorf("expected archived in response, got %q", got.Status)
	}
}

func TestSiteStats(t *testing.T) {
	site := testSite()
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			statsFn: func(ctx context.Context, siteID string) (*domain.SiteStats, error) {
				return &domain.SiteStats{SiteID: siteID, LineCount: 4, MainCount: 3, ServiceCount: 1}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/stats", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Site  domain.ExcavationSite `json:"site"`
		Stats domain.SiteStats      `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Site.ID != site.ID {
		t.Errorf("expected site %s, got %s", site.ID, result.Site.ID)
	}
	if result.Stats.LineCount != 4 || result.Stats.MainCount != 3 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
}

// ---- Line endpoints ----

func twoPointLine(id string, kind domain.UtilityKind) domain.UtilityLine {
	return domain.UtilityLine{
		ID:     id,
		SiteID: testSite().ID,
		Kind:   kind,
		Class:  domain.ClassMain,
		Vertices: []domain.GeoPoint{
			{Lat: 39.7392, Lon: -104.9913},
			{Lat: 39.7392, Lon: -104.9893},
		},
	}
}

func TestListLines_KindFilter(t *testing.T) {
	site := testSite()
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			listBySiteFn: func(ctx context.Context, siteID string) ([]domain.UtilityLine, error) {
				return []domain.UtilityLine{
					twoPointLine("w-1", domain.KindWater),
					twoPointLine("w-2", domain.KindWater),
					twoPointLine("g-1", domain.KindGas),
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/lines?kind=water", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.UtilityLine `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Pagination.Total != 2 {
		t.Errorf("expected 2 water lines, got %d", result.Pagination.Total)
	}

	// Unknown kind is rejected
	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/lines?kind=plasma", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for unknown kind, got %d", resp.StatusCode)
	}
}

func TestUpsertLine(t *testing.T) {
	site := testSite()
	var saved *domain.UtilityLine
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			upsertFn: func(ctx context.Context, line *domain.UtilityLine) error {
				saved = line
				return nil
			},
		}, nil)
	})
	app := setupApp(deps)

	body := `{"kind":"water","vertices":[{"lat":39.7392,"lon":-104.9913},{"lat":39.7392,"lon":-104.9893}]}`
	req := httptest.NewRequest("POST", "/v1/sites/riverside-gas/lines", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	if saved == nil {
		t.Fatal("expected line persisted")
	}
	if saved.SiteID != site.ID {
		t.Errorf("expected slug resolved to site UUID, got %q", saved.SiteID)
	}
	if saved.Class != domain.ClassMain {
		t.Errorf("expected class defaulted to main, got %q", saved.Class)
	}
	if saved.ID == "" {
		t.Error("expected assigned line ID")
	}
}

func TestUpsertLine_MalformedGeometry(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil)))

	body := `{"kind":"water","vertices":[{"lat":39.7392,"lon":-104.9913}]}`
	req := httptest.NewRequest("POST", "/v1/sites/riverside-gas/lines", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for single-vertex line, got %d", resp.StatusCode)
	}
}

func TestImportLines(t *testing.T) {
	site := testSite()
	var batch []domain.UtilityLine
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			upsertBatchFn: func(ctx context.Context, lines []domain.UtilityLine) error {
				batch = lines
				return nil
			},
		}, nil)
	})
	app := setupApp(deps)

	body := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"kind":"water","class":"main"},
		 "geometry":{"type":"LineString","coordinates":[[-104.9913,39.7392],[-104.9893,39.7392]]}},
		{"type":"Feature","properties":{"kind":"water"},
		 "geometry":{"type":"Point","coordinates":[-104.9903,39.7392]}}
	]}`
	req := httptest.NewRequest("POST", "/v1/sites/riverside-gas/lines/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Errorf("expected 1 imported / 1 skipped, got %d/%d", result.Imported, result.Skipped)
	}
	if len(batch) != 1 || batch[0].Kind != domain.KindWater {
		t.Errorf("unexpected batch: %+v", batch)
	}
}

func TestNearbyLines_RequiresLatLon(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil)))

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/lines/nearby", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without lat/lon, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/lines/nearby?lat=39.7&lon=-104.9&radius=5000", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for oversized radius, got %d", resp.StatusCode)
	}
}

func TestNearbyLines(t *testing.T) {
	site := testSite()
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			findNearFn: func(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error) {
				return []domain.UtilityLine{twoPointLine("w-1", domain.KindWater)}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/lines/nearby?lat=39.7392&lon=-104.9903&radius=25", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("expected spatial cache header, got %q", cc)
	}

	var lines []domain.UtilityLine
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(lines) != 1 || lines[0].ID != "w-1" {
		t.Errorf("unexpected lines: %+v", lines)
	}
}

func TestNearestMain(t *testing.T) {
	site := testSite()
	// A water main about 4 meters north of the query point.
	main := domain.UtilityLine{
		ID: "wm-1", SiteID: site.ID, Kind: domain.KindWater, Class: domain.ClassMain,
		Vertices: []domain.GeoPoint{
			{Lat: 39.73923597, Lon: -104.9913},
			{Lat: 39.73923597, Lon: -104.9893},
		},
	}
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			findNearFn: func(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error) {
				return []domain.UtilityLine{main}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/connect?lat=39.7392&lon=-104.9903&kind=water", nil)
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
	if conn.Line.ID != "wm-1" {
		t.Errorf("expected wm-1, got %q", conn.Line.ID)
	}
	if conn.DistanceMeters < 3.5 || conn.DistanceMeters > 4.5 {
		t.Errorf("expected ~4m snap distance, got %.2f", conn.DistanceMeters)
	}
}

func TestNearestMain_Validation(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil)))

	// kind is required
	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/connect?lat=39.7&lon=-104.9", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without kind, got %d", resp.StatusCode)
	}

	// no candidates in range
	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/connect?lat=39.7&lon=-104.9&kind=water", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 with no mains, got %d", resp.StatusCode)
	}
}

func TestGetLine_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/lines/nope", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Device state endpoints ----

func TestActiveAlerts(t *testing.T) {
	site := testSite()
	tick := domain.TickEvent{
		SiteID:   site.ID,
		DeviceID: "dev-1",
		AtMs:     1700000000000,
		Result: domain.TickResult{
			Alerts: []domain.ProximityAlert{
				{UtilityID: "w-1", Severity: domain.SeverityCritical, DistanceFeet: 3.2},
			},
		},
	}
	data, _ := json.Marshal(tick)
	cache := &mockStateCache{data: map[string][]byte{
		fmt.Sprintf("dig:tick:%s:%s", site.ID, "dev-1"): data,
	}}
	app := setupApp(makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Cache = cache
	}))

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/alerts?device=dev-1", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store on live alerts, got %q", cc)
	}

	var got domain.TickEvent
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Result.Alerts) != 1 || got.Result.Alerts[0].Severity != domain.SeverityCritical {
		t.Errorf("unexpected tick: %+v", got.Result)
	}

	// Device the monitor has not seen
	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/alerts?device=ghost", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unseen device, got %d", resp.StatusCode)
	}

	// Missing device parameter
	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/alerts", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without device, got %d", resp.StatusCode)
	}
}

func TestAlertHistory(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Events = &mockAlertRepo{
			listFn: func(ctx context.Context, siteID string, limit int) ([]domain.AlertEvent, error) {
				return []domain.AlertEvent{
					{ID: "e2", UtilityID: "w-1", Event: domain.AlertCleared, At: time.Now()},
					{ID: "e1", UtilityID: "w-1", Event: domain.AlertRaised, At: time.Now().Add(-time.Minute)},
				}, nil
			},
		}
	}))

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/alerts/history", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var events []domain.AlertEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(events) != 2 || events[0].Event != domain.AlertCleared {
		t.Errorf("unexpected history: %+v", events)
	}
}

func TestDevicePose(t *testing.T) {
	site := testSite()
	pose := domain.PoseEvent{
		SiteID:   site.ID,
		DeviceID: "dev-1",
		Pose:     &domain.FilteredPose{Lat: 39.7392, Lon: -104.9903, AccuracyMeters: 4.2},
	}
	data, _ := json.Marshal(pose)
	app := setupApp(makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Cache = &mockStateCache{data: map[string][]byte{
			fmt.Sprintf("dig:pose:%s:%s", site.ID, "dev-1"): data,
		}}
	}))

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/devices/dev-1/pose", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got domain.PoseEvent
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Pose == nil || got.Pose.Lat != 39.7392 {
		t.Errorf("unexpected pose: %+v", got.Pose)
	}

	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/devices/ghost/pose", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unseen device, got %d", resp.StatusCode)
	}
}

func TestIngestSample(t *testing.T) {
	site := testSite()
	pub := &mockEventPublisher{}
	app := setupApp(makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Publisher = pub
	}))

	body := `{"lat":39.7392,"lon":-104.9903,"accuracy_m":5}`
	req := httptest.NewRequest("POST", "/v1/sites/riverside-gas/devices/dev-1/samples", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	if len(pub.samples) != 1 {
		t.Fatalf("expected 1 published sample, got %d", len(pub.samples))
	}
	ev := pub.samples[0]
	if ev.SiteID != site.ID || ev.DeviceID != "dev-1" {
		t.Errorf("unexpected sample routing: %+v", ev)
	}
	if ev.Sample.TimestampMs == 0 {
		t.Error("expected timestamp defaulted to now")
	}
}

func TestIngestSample_MissingCoords(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil)))

	req := httptest.NewRequest("POST", "/v1/sites/riverside-gas/devices/dev-1/samples", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without coordinates, got %d", resp.StatusCode)
	}
}

func TestDeviceCommand(t *testing.T) {
	site := testSite()
	pub := &mockEventPublisher{}
	app := setupApp(makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Publisher = pub
	}))

	post := func(body string) int {
		req := httptest.NewRequest("POST", "/v1/sites/riverside-gas/devices/dev-1/commands", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("test request: %v", err)
		}
		return resp.StatusCode
	}

	if code := post(`{"action":"dismiss"}`); code != 400 {
		t.Errorf("dismiss without utility_id: expected 400, got %d", code)
	}
	if code := post(`{"action":"set_site"}`); code != 400 {
		t.Errorf("set_site without point: expected 400, got %d", code)
	}
	if code := post(`{"action":"explode"}`); code != 400 {
		t.Errorf("unknown action: expected 400, got %d", code)
	}
	if code := post(`{"action":"dismiss","utility_id":"w-1"}`); code != 202 {
		t.Errorf("valid dismiss: expected 202, got %d", code)
	}

	if len(pub.commands) != 1 {
		t.Fatalf("expected 1 published command, got %d", len(pub.commands))
	}
	cmd := pub.commands[0]
	if cmd.Action != domain.CommandDismiss || cmd.UtilityID != "w-1" || cmd.IssuedMs == 0 {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

// ---- Incident endpoints ----

func TestListIncidents(t *testing.T) {
	site := testSite()
	app := setupApp(makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Incidents = usecases.NewIncidentService(&mockIncidentRepo{
			listOpenFn: func(ctx context.Context, siteID string) ([]domain.Incident, error) {
				return []domain.Incident{
					{ID: "inc-1", SiteID: siteID, Status: domain.IncidentOpen},
				}, nil
			},
		})
	}))

	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/incidents", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var incidents []domain.Incident
	if err := json.NewDecoder(resp.Body).Decode(&incidents); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(incidents) != 1 || incidents[0].ID != "inc-1" {
		t.Errorf("unexpected incidents: %+v", incidents)
	}
}

func TestCloseIncident(t *testing.T) {
	var closedID, closedStatus string
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Incidents = usecases.NewIncidentService(&mockIncidentRepo{
			getByIDFn: func(ctx context.Context, id string) (*domain.Incident, error) {
				if id == "inc-1" {
					return &domain.Incident{ID: "inc-1", Status: domain.IncidentNotified}, nil
				}
				return nil, errors.New("not found")
			},
			setStatusFn: func(ctx context.Context, id, status string) error {
				closedID, closedStatus = id, status
				return nil
			},
		})
	}))

	req := httptest.NewRequest("POST", "/v1/incidents/inc-1/close", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if closedID != "inc-1" || closedStatus != domain.IncidentClosed {
		t.Errorf("expected inc-1 closed, got %s/%s", closedID, closedStatus)
	}

	var got domain.Incident
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != domain.IncidentClosed {
		t.Errorf("expected closed in response, got %q", got.Status)
	}

	req = httptest.NewRequest("POST", "/v1/incidents/ghost/close", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for unknown incident, got %d", resp.StatusCode)
	}
}

// ---- Legacy proximity check ----

func TestLegacyProximity(t *testing.T) {
	site := testSite()
	deps := makeDeps(withKnownSite(site, nil), func(d *handler.Dependencies) {
		d.Lines = usecases.NewLineService(&mockLineRepo{
			listBySiteFn: func(ctx context.Context, siteID string) ([]domain.UtilityLine, error) {
				return []domain.UtilityLine{twoPointLine("w-1", domain.KindWater)}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	// Query point sits on the line, so the alert is critical.
	req := httptest.NewRequest("GET", "/v1/sites/riverside-gas/proximity?lat=39.7392&lon=-104.9903", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if dep := resp.Header.Get("Deprecation"); dep != "true" {
		t.Errorf("expected Deprecation header, got %q", dep)
	}
	if sunset := resp.Header.Get("Sunset"); sunset == "" {
		t.Error("expected Sunset header on deprecated route")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "successor-version") {
		t.Errorf("expected successor-version link, got %q", link)
	}

	var result domain.TickResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Severity != domain.SeverityCritical {
		t.Errorf("expected one critical alert, got %+v", result.Alerts)
	}

	req = httptest.NewRequest("GET", "/v1/sites/riverside-gas/proximity", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without lat/lon, got %d", resp.StatusCode)
	}
}

// ---- System endpoints ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != "healthy" || result.Uptime == "" {
		t.Errorf("unexpected health payload: %+v", result)
	}
}

func TestReady_WithoutDatabase(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 without a database, got %d", resp.StatusCode)
	}

	var result struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Checks["database"] != "not configured" {
		t.Errorf("unexpected checks: %+v", result.Checks)
	}
	if result.Checks["cache"] != "ok" {
		t.Errorf("expected cache ok, got %q", result.Checks["cache"])
	}
}

func TestSystemStats_WithoutDatabase(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/status", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500 without a database, got %d", resp.StatusCode)
	}
}

func TestETagRoundTrip(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(&mockSiteRepo{
			listFn: func(ctx context.Context) ([]domain.ExcavationSite, error) {
				return []domain.ExcavationSite{{ID: "s1", Slug: "site-1"}}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/sites", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on cacheable response")
	}

	req = httptest.NewRequest("GET", "/v1/sites", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 304 {
		t.Errorf("expected 304 on matching ETag, got %d", resp.StatusCode)
	}
}

// ---- GraphQL ----

func TestGraphQL_Sites(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Sites = usecases.NewSiteService(&mockSiteRepo{
			listFn: func(ctx context.Context) ([]domain.ExcavationSite, error) {
				return []domain.ExcavationSite{
					{ID: "s1", Slug: "riverside-gas", Name: "Riverside"},
				}, nil
			},
		})
	})
	app := setupApp(deps)

	body := `{"query":"{ sites { slug name } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Sites []struct {
				Slug string `json:"slug"`
				Name string `json:"name"`
			} `json:"sites"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %+v", result.Errors)
	}
	if len(result.Data.Sites) != 1 || result.Data.Sites[0].Slug != "riverside-gas" {
		t.Errorf("unexpected sites: %+v", result.Data.Sites)
	}
}

func TestGraphQL_ActiveAlerts(t *testing.T) {
	site := testSite()
	tick := domain.TickEvent{
		SiteID:   site.ID,
		DeviceID: "dev-1",
		Result: domain.TickResult{
			Alerts: []domain.ProximityAlert{
				{UtilityID: "g-7", Severity: domain.SeverityDanger, DistanceFeet: 8.4},
			},
		},
	}
	data, _ := json.Marshal(tick)
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Cache = &mockStateCache{data: map[string][]byte{
			fmt.Sprintf("dig:tick:%s:%s", site.ID, "dev-1"): data,
		}}
	}))

	body := fmt.Sprintf(`{"query":"{ activeAlerts(site_id: \"%s\", device: \"dev-1\") { utility_id severity distance_feet } }"}`, site.ID)
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			ActiveAlerts []struct {
				UtilityID string  `json:"utility_id"`
				Severity  string  `json:"severity"`
				Distance  float64 `json:"distance_feet"`
			} `json:"activeAlerts"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %+v", result.Errors)
	}
	if len(result.Data.ActiveAlerts) != 1 || result.Data.ActiveAlerts[0].Severity != "danger" {
		t.Errorf("unexpected alerts: %+v", result.Data.ActiveAlerts)
	}
}
