package ports

import (
	"context"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// SiteRepository persists excavation sites.
type SiteRepository interface {
	Create(ctx context.Context, site *domain.ExcavationSite) error
	GetByID(ctx context.Context, id string) (*domain.ExcavationSite, error)
	GetBySlug(ctx context.Context, slug string) (*domain.ExcavationSite, error)
	List(ctx context.Context) ([]domain.ExcavationSite, error)
	UpdateStatus(ctx context.Context, id string, status domain.SiteStatus) error
}

// UtilityLineRepository persists recorded utility lines.
type UtilityLineRepository interface {
	Upsert(ctx context.Context, line *domain.UtilityLine) error
	UpsertBatch(ctx context.Context, lines []domain.UtilityLine) error
	GetByID(ctx context.Context, id string) (*domain.UtilityLine, error)
	ListBySite(ctx context.Context, siteID string) ([]domain.UtilityLine, error)
	FindNear(ctx context.Context, siteID string, lat, lon, radiusMeters float64, limit int) ([]domain.UtilityLine, error)
	StatsBySite(ctx context.Context, siteID string) (*domain.SiteStats, error)
}

// AlertEventRepository persists alert transitions for the site audit log.
type AlertEventRepository interface {
	Insert(ctx context.Context, event *domain.AlertEvent) error
	ListBySite(ctx context.Context, siteID string, limit int) ([]domain.AlertEvent, error)
}

// IncidentRepository persists escalated incidents.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	SetStatus(ctx context.Context, id, status string) error
	ListOpenBySite(ctx context.Context, siteID string) ([]domain.Incident, error)
}

// LineSnapshot is the read-only accessor the proximity engine uses to see
// the current utility map. Implementations must return an immutable-for-the-
// tick slice; the engine never mutates it.
type LineSnapshot interface {
	Lines() []domain.UtilityLine
}

// LineSnapshotFunc adapts a plain function to a LineSnapshot.
type LineSnapshotFunc func() []domain.UtilityLine

func (f LineSnapshotFunc) Lines() []domain.UtilityLine { return f() }
