package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
)

// SiteService handles excavation-site business logic.
type SiteService struct {
	sites ports.SiteRepository
}

// NewSiteService creates a new SiteService.
func NewSiteService(sites ports.SiteRepository) *SiteService {
	return &SiteService{sites: sites}
}

// Create registers a new excavation site. The slug is derived from the name
// when not given.
func (s *SiteService) Create(ctx context.Context, name, slug string, center *domain.GeoPoint) (*domain.ExcavationSite, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("site name is required")
	}
	if slug == "" {
		slug = slugify(name)
	}

	site := &domain.ExcavationSite{
		ID:        uuid.NewString(),
		Slug:      slug,
		Name:      name,
		Status:    domain.SiteActive,
		Center:    center,
		CreatedAt: time.Now(),
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	return site, nil
}

// List returns all sites.
func (s *SiteService) List(ctx context.Context) ([]domain.ExcavationSite, error) {
	return s.sites.List(ctx)
}

// GetByID returns a site by id.
func (s *SiteService) GetByID(ctx context.Context, id string) (*domain.ExcavationSite, error) {
	return s.sites.GetByID(ctx, id)
}

// GetBySlug returns a site by slug.
func (s *SiteService) GetBySlug(ctx context.Context, slug string) (*domain.ExcavationSite, error) {
	return s.sites.GetBySlug(ctx, slug)
}

// Archive marks a site archived. Its recorded lines stay in place.
func (s *SiteService) Archive(ctx context.Context, id string) error {
	return s.sites.UpdateStatus(ctx, id, domain.SiteArchived)
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
