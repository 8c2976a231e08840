package postgres

import (
	"context"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// SiteRepo implements ports.SiteRepository with pgx.
type SiteRepo struct {
	db *DB
}

// NewSiteRepo creates a new SiteRepo.
func NewSiteRepo(db *DB) *SiteRepo {
	return &SiteRepo{db: db}
}

// Create inserts a new excavation site.
func (r *SiteRepo) Create(ctx context.Context, s *domain.ExcavationSite) error {
	var lon, lat *float64
	if s.Center != nil {
		lon, lat = &s.Center.Lon, &s.Center.Lat
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO sites (id, slug, name, status, center, created_at)
		VALUES ($1, $2, $3, $4,
		        CASE WHEN $5::float8 IS NULL THEN NULL
		             ELSE ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography END,
		        $7)
	`, s.ID, s.Slug, s.Name, s.Status, lon, lat, s.CreatedAt)
	return err
}

const selectSiteSQL = `
	SELECT id, slug, name, status,
	       ST_Y(center::geometry), ST_X(center::geometry), created_at
	FROM sites
`

// GetByID returns a site by UUID.
func (r *SiteRepo) GetByID(ctx context.Context, id string) (*domain.ExcavationSite, error) {
	return r.getOne(ctx, selectSiteSQL+` WHERE id = $1`, id)
}

// GetBySlug returns a site by slug.
func (r *SiteRepo) GetBySlug(ctx context.Context, slug string) (*domain.ExcavationSite, error) {
	return r.getOne(ctx, selectSiteSQL+` WHERE slug = $1`, slug)
}

func (r *SiteRepo) getOne(ctx context.Context, sql string, arg any) (*domain.ExcavationSite, error) {
	var s domain.ExcavationSite
	var lat, lon *float64
	err := r.db.Pool.QueryRow(ctx, sql, arg).Scan(
		&s.ID, &s.Slug, &s.Name, &s.Status, &lat, &lon, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		s.Center = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	return &s, nil
}

// List returns all sites, newest first.
func (r *SiteRepo) List(ctx context.Context) ([]domain.ExcavationSite, error) {
	rows, err := r.db.Pool.Query(ctx, selectSiteSQL+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []domain.ExcavationSite
	for rows.Next() {
		var s domain.ExcavationSite
		var lat, lon *float64
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.Status, &lat, &lon, &s.CreatedAt); err != nil {
			return nil, err
		}
		if lat != nil && lon != nil {
			s.Center = &domain.GeoPoint{Lat: *lat, Lon: *lon}
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// UpdateStatus changes a site's lifecycle state.
func (r *SiteRepo) UpdateStatus(ctx context.Context, id string, status domain.SiteStatus) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE sites SET status = $2 WHERE id = $1
	`, id, status)
	return err
}
