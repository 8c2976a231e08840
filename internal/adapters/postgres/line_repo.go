package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// LineRepo implements ports.UtilityLineRepository with pgx. Geometry is
// stored twice: a PostGIS geography column answers the radius queries, and a
// jsonb vertex array round-trips the exact polyline the proximity engine
// computes against.
type LineRepo struct {
	db *DB
}

// NewLineRepo creates a new LineRepo.
func NewLineRepo(db *DB) *LineRepo {
	return &LineRepo{db: db}
}

// lineWKT renders the vertex polyline as WKT for ST_GeogFromText.
func lineWKT(vertices []domain.GeoPoint) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, v := range vertices {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v.Lon, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(v.Lat, 'f', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}

const upsertLineSQL = `
	INSERT INTO utility_lines (id, site_id, kind, class, geom, vertices, metadata, created_at, updated_at)
	VALUES ($1, $2, $3, $4, ST_GeogFromText($5), $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE
	SET kind = EXCLUDED.kind, class = EXCLUDED.class,
	    geom = EXCLUDED.geom, vertices = EXCLUDED.vertices,
	    metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
`

// Upsert inserts or updates a single line.
func (r *LineRepo) Upsert(ctx context.Context, l *domain.UtilityLine) error {
	_, err := r.db.Pool.Exec(ctx, upsertLineSQL,
		l.ID, l.SiteID, l.Kind, l.Class, lineWKT(l.Vertices),
		l.Vertices, l.Metadata, l.CreatedAt, l.UpdatedAt)
	return err
}

// UpsertBatch inserts many lines using pgx.Batch. An import of a full site
// map lands in one round trip.
func (r *LineRepo) UpsertBatch(ctx context.Context, lines []domain.UtilityLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(upsertLineSQL,
			l.ID, l.SiteID, l.Kind, l.Class, lineWKT(l.Vertices),
			l.Vertices, l.Metadata, l.CreatedAt, l.UpdatedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range lines {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a line by UUID.
func (r *LineRepo) GetByID(ctx context.Context, id string) (*domain.UtilityLine, error) {
	var l domain.UtilityLine
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, site_id, kind, class, vertices, COALESCE(metadata, '{}'), created_at, updated_at
		FROM utility_lines WHERE id = $1
	`, id).Scan(
		&l.ID, &l.SiteID, &l.Kind, &l.Class,
		&l.Vertices, &l.Metadata, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListBySite returns every line recorded for a site.
func (r *LineRepo) ListBySite(ctx context.Context, siteID string) ([]domain.UtilityLine, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, site_id, kind, class, vertices, COALESCE(metadata, '{}'), created_at, updated_at
		FROM utility_lines WHERE site_id = $1
		ORDER BY kind, id
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

// FindNear returns lines whose geometry passes within radiusMeters of the
// point, nearest first, using PostGIS ST_DWithin.
func (r *LineRepo) FindNear(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, site_id, kind, class, vertices, COALESCE(metadata, '{}'), created_at, updated_at
		FROM utility_lines
		WHERE site_id = $1
		  AND ST_DWithin(geom, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4)
		ORDER BY ST_Distance(geom, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography)
		LIMIT $5
	`, siteID, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

// StatsBySite summarizes a site's recorded map.
func (r *LineRepo) StatsBySite(ctx context.Context, siteID string) (*domain.SiteStats, error) {
	stats := &domain.SiteStats{SiteID: siteID, ByKind: make(map[domain.UtilityKind]int)}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE class = 'main'),
		       COUNT(*) FILTER (WHERE class = 'service'),
		       MAX(updated_at)
		FROM utility_lines WHERE site_id = $1
	`, siteID).Scan(&stats.LineCount, &stats.MainCount, &stats.ServiceCount, &stats.LastImportAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT kind, COUNT(*) FROM utility_lines WHERE site_id = $1 GROUP BY kind
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind domain.UtilityKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		stats.ByKind[kind] = n
	}
	return stats, rows.Err()
}

func scanLines(rows pgx.Rows) ([]domain.UtilityLine, error) {
	var lines []domain.UtilityLine
	for rows.Next() {
		var l domain.UtilityLine
		if err := rows.Scan(
			&l.ID, &l.SiteID, &l.Kind, &l.Class,
			&l.Vertices, &l.Metadata, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
