package workflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
)

// EscalationActivities holds the activity implementations for the incident
// escalation workflow.
type EscalationActivities struct {
	Incidents ports.IncidentRepository
	Lines     *usecases.LineService
	Sites     *usecases.SiteService
	Notifier  ports.NotificationService
}

// OpenIncident creates the incident record and returns its ID.
func (a *EscalationActivities) OpenIncident(ctx context.Context, input EscalationInput) (string, error) {
	in := &domain.Incident{
		ID:           uuid.NewString(),
		SiteID:       input.SiteID,
		DeviceID:     input.DeviceID,
		UtilityID:    input.UtilityID,
		Severity:     domain.Severity(input.Severity),
		DistanceFeet: input.DistanceFeet,
		Status:       domain.IncidentOpen,
		OpenedAt:     time.Now().UTC(),
	}
	if err := a.Incidents.Create(ctx, in); err != nil {
		return "", fmt.Errorf("create incident: %w", err)
	}
	return in.ID, nil
}

// DescribeLine returns a short human description of the threatened line.
func (a *EscalationActivities) DescribeLine(ctx context.Context, utilityID string) (string, error) {
	line, err := a.Lines.GetByID(ctx, utilityID)
	if err != nil {
		return "", fmt.Errorf("get line %s: %w", utilityID, err)
	}
	if line == nil {
		return "", fmt.Errorf("line %s not found", utilityID)
	}
	desc := fmt.Sprintf("%s %s", line.Kind, line.Class)
	if material, ok := line.Metadata["material"].(string); ok && material != "" {
		desc = fmt.Sprintf("%s (%s)", desc, material)
	}
	return desc, nil
}

// NotifySupervisor pushes the escalation to the site supervisor channel.
func (a *EscalationActivities) NotifySupervisor(ctx context.Context, input EscalationInput, incidentID, summary string) error {
	if summary == "" {
		summary = "utility line"
	}
	siteName := input.SiteID
	if a.Sites != nil {
		if site, err := a.Sites.GetByID(ctx, input.SiteID); err == nil && site != nil {
			siteName = site.Name
		}
	}

	if a.Notifier == nil {
		log.Printf("PUSH (no notifier) → site=%s device=%s incident=%s", input.SiteID, input.DeviceID, incidentID)
		return nil
	}
	title := fmt.Sprintf("Critical proximity at %s", siteName)
	body := fmt.Sprintf("Device %s held %.1f ft from a %s. Incident %s.",
		input.DeviceID, input.DistanceFeet, summary, incidentID)
	return a.Notifier.SendPush(ctx, "supervisor."+input.SiteID, title, body)
}

// MarkNotified records that the supervisor was told.
func (a *EscalationActivities) MarkNotified(ctx context.Context, incidentID string) error {
	if err := a.Incidents.SetStatus(ctx, incidentID, domain.IncidentNotified); err != nil {
		return fmt.Errorf("mark notified %s: %w", incidentID, err)
	}
	return nil
}

// CloseIncident closes an incident (saga compensation / rollback).
func (a *EscalationActivities) CloseIncident(ctx context.Context, incidentID string) error {
	if err := a.Incidents.SetStatus(ctx, incidentID, domain.IncidentClosed); err != nil {
		return fmt.Errorf("close incident %s: %w", incidentID, err)
	}
	log.Printf("Incident %s closed (saga compensation)", incidentID)
	return nil
}
