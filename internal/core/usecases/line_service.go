package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/pkg/geospatial"
	"github.com/digsentry/digsentry/internal/pkg/metrics"
)

// Cache TTLs in seconds. Utility maps change only on imports and edits, so
// line data caches longer than live monitor state.
const (
	linesCacheTTL  = 300
	lineCacheTTL   = 600
	nearbyCacheTTL = 60
)

// DefaultConnectRadiusMeters bounds the search for a main to tap when the
// caller does not give a radius.
const DefaultConnectRadiusMeters = 30.0

// LineService handles utility-line business logic.
type LineService struct {
	lines ports.UtilityLineRepository
	cache ports.CacheService
}

// NewLineService creates a new LineService.
func NewLineService(lines ports.UtilityLineRepository, cache ports.CacheService) *LineService {
	return &LineService{lines: lines, cache: cache}
}

// ListBySite returns every recorded line of a site. This backs the
// monitor's per-tick snapshot, so results are cached.
func (s *LineService) ListBySite(ctx context.Context, siteID string) ([]domain.UtilityLine, error) {
	cacheKey := "dig:lines:" + siteID
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var lines []domain.UtilityLine
			if err := json.Unmarshal(data, &lines); err == nil {
				metrics.CacheHits.WithLabelValues("lines_site").Inc()
				return lines, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("lines_site").Inc()
	}

	lines, err := s.lines.ListBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(lines); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, linesCacheTTL)
		}
	}
	return lines, nil
}

// GetByID returns a single line.
func (s *LineService) GetByID(ctx context.Context, id string) (*domain.UtilityLine, error) {
	cacheKey := "dig:line:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var line domain.UtilityLine
			if err := json.Unmarshal(data, &line); err == nil {
				return &line, nil
			}
		}
	}

	line, err := s.lines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(line); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, lineCacheTTL)
		}
	}
	return line, nil
}

// FindNearby returns lines within radiusMeters of the given point.
func (s *LineService) FindNearby(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	cacheKey := fmt.Sprintf("dig:nearby:%s:%.5f:%.5f:%.0f:%d", siteID, lat, lon, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var lines []domain.UtilityLine
			if err := json.Unmarshal(data, &lines); err == nil {
				return lines, nil
			}
		}
	}

	lines, err := s.lines.FindNear(ctx, siteID, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(lines); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, nearbyCacheTTL)
		}
	}
	return lines, nil
}

// Upsert validates and stores one line, then invalidates the site's cached
// snapshot so monitors pick the change up on their next refresh.
func (s *LineService) Upsert(ctx context.Context, line *domain.UtilityLine) error {
	if line.SiteID == "" {
		return fmt.Errorf("line site id is required")
	}
	if _, err := domain.ParseUtilityKind(string(line.Kind)); err != nil {
		return err
	}
	if _, err := domain.ParseLineClass(string(line.Class)); err != nil {
		return err
	}
	if err := line.Validate(); err != nil {
		return err
	}

	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	now := time.Now()
	if line.CreatedAt.IsZero() {
		line.CreatedAt = now
	}
	line.UpdatedAt = now

	if err := s.lines.Upsert(ctx, line); err != nil {
		return fmt.Errorf("upsert line: %w", err)
	}
	s.invalidateSite(ctx, line.SiteID)
	return nil
}

// ImportGeoJSON loads a GeoJSON FeatureCollection of utility lines into a
// site. It returns how many lines were imported and how many features were
// skipped as unmappable.
func (s *LineService) ImportGeoJSON(ctx context.Context, siteID string, data []byte) (int, int, error) {
	if siteID == "" {
		return 0, 0, fmt.Errorf("site id is required")
	}

	lines, skipped, err := geospatial.DecodeLines(data, siteID)
	if err != nil {
		return 0, 0, err
	}
	if skipped > 0 {
		metrics.MalformedLines.Add(float64(skipped))
	}

	now := time.Now()
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.NewString()
		}
		lines[i].CreatedAt = now
		lines[i].UpdatedAt = now
	}

	if len(lines) > 0 {
		if err := s.lines.UpsertBatch(ctx, lines); err != nil {
			return 0, skipped, fmt.Errorf("import lines: %w", err)
		}
	}
	s.invalidateSite(ctx, siteID)
	return len(lines), skipped, nil
}

// NearestMain finds the closest same-kind main within maxDistanceMeters of
// point, for snapping a newly drawn service line. The database narrows the
// candidate set; the distance kernel makes the final call, so the query
// radius is padded slightly.
func (s *LineService) NearestMain(ctx context.Context, siteID string, point domain.GeoPoint, kind domain.UtilityKind, maxDistanceMeters float64) (*domain.MainConnection, error) {
	if _, err := domain.ParseUtilityKind(string(kind)); err != nil {
		return nil, err
	}
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = DefaultConnectRadiusMeters
	}

	candidates, err := s.lines.FindNear(ctx, siteID, point.Lat, point.Lon, maxDistanceMeters*1.05+5, 100)
	if err != nil {
		return nil, err
	}
	return FindNearbyMain(point, kind, maxDistanceMeters, candidates), nil
}

// Stats summarizes a site's recorded utility map.
func (s *LineService) Stats(ctx context.Context, siteID string) (*domain.SiteStats, error) {
	return s.lines.StatsBySite(ctx, siteID)
}

func (s *LineService) invalidateSite(ctx context.Context, siteID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, "dig:lines:"+siteID)
}
