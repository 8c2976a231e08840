package postgres

import (
	"context"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// AlertEventRepo implements ports.AlertEventRepository with pgx. Alert
// transitions are append-only; the table is the site's audit log.
type AlertEventRepo struct {
	db *DB
}

// NewAlertEventRepo creates a new AlertEventRepo.
func NewAlertEventRepo(db *DB) *AlertEventRepo {
	return &AlertEventRepo{db: db}
}

// Insert appends one alert transition.
func (r *AlertEventRepo) Insert(ctx context.Context, ev *domain.AlertEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO alert_events (id, site_id, device_id, utility_id, event, severity, distance_feet, dismissed_until_ms, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.SiteID, ev.DeviceID, ev.UtilityID, ev.Event,
		ev.Severity, ev.DistanceFeet, ev.DismissedUntilMs, ev.At)
	return err
}

// ListBySite returns the most recent transitions for a site, newest first.
func (r *AlertEventRepo) ListBySite(ctx context.Context, siteID string, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, site_id, device_id, utility_id, event, severity, distance_feet, dismissed_until_ms, at
		FROM alert_events
		WHERE site_id = $1
		ORDER BY at DESC
		LIMIT $2
	`, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AlertEvent
	for rows.Next() {
		var ev domain.AlertEvent
		if err := rows.Scan(
			&ev.ID, &ev.SiteID, &ev.DeviceID, &ev.UtilityID, &ev.Event,
			&ev.Severity, &ev.DistanceFeet, &ev.DismissedUntilMs, &ev.At,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
