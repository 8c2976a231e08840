package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// EscalationInput is the input for the incident escalation workflow.
type EscalationInput struct {
	SiteID       string
	DeviceID     string
	UtilityID    string
	Severity     string
	DistanceFeet float64
}

// IncidentEscalationWorkflow opens an incident for a sustained critical
// proximity alert and notifies the site supervisor. If the notification
// cannot be delivered, the incident is closed again (saga compensation) so
// the open-incident list only holds incidents someone was told about.
func IncidentEscalationWorkflow(ctx workflow.Context, input EscalationInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting incident escalation", "utilityID", input.UtilityID, "distanceFeet", input.DistanceFeet)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Open the incident record
	var incidentID string
	err := workflow.ExecuteActivity(ctx, "OpenIncident", input).Get(ctx, &incidentID)
	if err != nil {
		return err
	}

	// Step 2: Describe the line for the notification (best effort)
	var summary string
	_ = workflow.ExecuteActivity(ctx, "DescribeLine", input.UtilityID).Get(ctx, &summary)

	// Step 3: Notify the site supervisor
	err = workflow.ExecuteActivity(ctx, "NotifySupervisor", input, incidentID, summary).Get(ctx, nil)
	if err != nil {
		logger.Warn("supervisor notification failed, compensating", "error", err)
		// Compensate: close the unheard incident
		_ = workflow.ExecuteActivity(ctx, "CloseIncident", incidentID).Get(ctx, nil)
		return err
	}

	// Step 4: Mark the incident notified
	err = workflow.ExecuteActivity(ctx, "MarkNotified", incidentID).Get(ctx, nil)
	if err != nil {
		return err
	}

	logger.Info("Incident escalated", "incidentID", incidentID)
	return nil
}
