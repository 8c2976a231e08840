package postgres

import (
	"context"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// IncidentRepo implements ports.IncidentRepository with pgx.
type IncidentRepo struct {
	db *DB
}

// NewIncidentRepo creates a new IncidentRepo.
func NewIncidentRepo(db *DB) *IncidentRepo {
	return &IncidentRepo{db: db}
}

// Create inserts a new incident.
func (r *IncidentRepo) Create(ctx context.Context, in *domain.Incident) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO incidents (id, site_id, device_id, utility_id, severity, distance_feet, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, in.ID, in.SiteID, in.DeviceID, in.UtilityID,
		in.Severity, in.DistanceFeet, in.Status, in.OpenedAt)
	return err
}

const selectIncidentSQL = `
	SELECT id, site_id, device_id, utility_id, severity, distance_feet, status, opened_at, closed_at
	FROM incidents
`

// GetByID returns an incident by UUID.
func (r *IncidentRepo) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	var in domain.Incident
	err := r.db.Pool.QueryRow(ctx, selectIncidentSQL+` WHERE id = $1`, id).Scan(
		&in.ID, &in.SiteID, &in.DeviceID, &in.UtilityID,
		&in.Severity, &in.DistanceFeet, &in.Status, &in.OpenedAt, &in.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// SetStatus moves an incident through its lifecycle. Closing stamps the
// closed_at time.
func (r *IncidentRepo) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE incidents
		SET status = $2,
		    closed_at = CASE WHEN $2 = 'closed' THEN now() ELSE closed_at END
		WHERE id = $1
	`, id, status)
	return err
}

// ListOpenBySite returns incidents not yet closed for a site, oldest first.
func (r *IncidentRepo) ListOpenBySite(ctx context.Context, siteID string) ([]domain.Incident, error) {
	rows, err := r.db.Pool.Query(ctx, selectIncidentSQL+`
		WHERE site_id = $1 AND status != 'closed'
		ORDER BY opened_at
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []domain.Incident
	for rows.Next() {
		var in domain.Incident
		if err := rows.Scan(
			&in.ID, &in.SiteID, &in.DeviceID, &in.UtilityID,
			&in.Severity, &in.DistanceFeet, &in.Status, &in.OpenedAt, &in.ClosedAt,
		); err != nil {
			return nil, err
		}
		incidents = append(incidents, in)
	}
	return incidents, rows.Err()
}
