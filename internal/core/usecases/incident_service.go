package usecases

import (
	"context"
	"fmt"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
)

// IncidentService handles escalated-incident queries.
type IncidentService struct {
	incidents ports.IncidentRepository
}

// NewIncidentService creates a new IncidentService.
func NewIncidentService(incidents ports.IncidentRepository) *IncidentService {
	return &IncidentService{incidents: incidents}
}

// GetByID returns a single incident.
func (s *IncidentService) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	return s.incidents.GetByID(ctx, id)
}

// ListOpen returns the open incidents of a site.
func (s *IncidentService) ListOpen(ctx context.Context, siteID string) ([]domain.Incident, error) {
	return s.incidents.ListOpenBySite(ctx, siteID)
}

// Close resolves an incident after the supervisor has handled it.
func (s *IncidentService) Close(ctx context.Context, id string) error {
	if err := s.incidents.SetStatus(ctx, id, domain.IncidentClosed); err != nil {
		return fmt.Errorf("close incident %s: %w", id, err)
	}
	return nil
}
