package domain

import "time"

// SampleEvent carries one device GPS delivery on the sample stream.
type SampleEvent struct {
	SiteID   string    `json:"site_id"`
	DeviceID string    `json:"device_id"`
	Sample   RawSample `json:"sample"`
}

// PoseEvent is the latest filtered pose and heading for a device, published
// at sensor cadence for live display.
type PoseEvent struct {
	SiteID     string        `json:"site_id"`
	DeviceID   string        `json:"device_id"`
	Pose       *FilteredPose `json:"pose,omitempty"`
	HeadingDeg float64       `json:"heading_deg"`
}

// TickEvent is one proximity tick published to crew displays.
type TickEvent struct {
	SiteID   string     `json:"site_id"`
	DeviceID string     `json:"device_id"`
	AtMs     int64      `json:"at_ms"`
	Result   TickResult `json:"result"`
}

// Command actions accepted on the command stream.
const (
	CommandDismiss      = "dismiss"
	CommandSetSite      = "set_site"
	CommandClearSite    = "clear_site"
	CommandResetFilters = "reset_filters"
)

// CommandEvent is an operator intent routed through the command stream to
// the monitor that owns the device session.
type CommandEvent struct {
	SiteID    string    `json:"site_id"`
	DeviceID  string    `json:"device_id"`
	Action    string    `json:"action"`
	UtilityID string    `json:"utility_id,omitempty"`
	Point     *GeoPoint `json:"point,omitempty"`
	IssuedMs  int64     `json:"issued_ms"`
}

// Alert transition kinds persisted to the site audit log.
const (
	AlertRaised          = "raised"
	AlertSeverityChanged = "severity_changed"
	AlertCleared         = "cleared"
	AlertDismissed       = "dismissed"
)

// AlertEvent is one persisted alert transition. DismissedUntilMs is set on
// dismissal events so clients can show when the alert may re-arm.
type AlertEvent struct {
	ID               string    `json:"id"`
	SiteID           string    `json:"site_id"`
	DeviceID         string    `json:"device_id"`
	UtilityID        string    `json:"utility_id"`
	Event            string    `json:"event"`
	Severity         Severity  `json:"severity"`
	DistanceFeet     float64   `json:"distance_feet"`
	DismissedUntilMs int64     `json:"dismissed_until_ms,omitempty"`
	At               time.Time `json:"at"`
}
