package domain

// Severity ranks proximity risk, from warning (outermost band) to critical.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCaution  Severity = "caution"
	SeverityDanger   Severity = "danger"
	SeverityCritical Severity = "critical"
)

// Severity band outer edges in feet. Bands are safety constants, not
// configuration.
const (
	CriticalMaxFeet = 5.0
	DangerMaxFeet   = 10.0
	CautionMaxFeet  = 25.0
	WarningMaxFeet  = 50.0
)

// FeetPerMeter converts metric distances to the feet shown to crews.
const FeetPerMeter = 3.28084

// SeverityForDistanceFeet maps a distance to its severity band. Exactly one
// band applies; beyond the warning band there is no alert.
func SeverityForDistanceFeet(feet float64) Severity {
	switch {
	case feet <= CriticalMaxFeet:
		return SeverityCritical
	case feet <= DangerMaxFeet:
		return SeverityDanger
	case feet <= CautionMaxFeet:
		return SeverityCaution
	case feet <= WarningMaxFeet:
		return SeverityWarning
	default:
		return SeverityNone
	}
}

// ProximityAlert is a live warning that a utility line is within the alert
// threshold of the dig reference point. At most one live alert exists per
// utility id; severity is a pure function of the current distance and is
// recomputed every tick. FirstSeenMs is stable across updates so the
// presentation layer can animate an alert without it flickering.
type ProximityAlert struct {
	UtilityID        string   `json:"utility_id"`
	Severity         Severity `json:"severity"`
	DistanceFeet     float64  `json:"distance_feet"`
	FirstSeenMs      int64    `json:"first_seen_ms"`
	LastSeenMs       int64    `json:"last_seen_ms"`
	DismissedUntilMs int64    `json:"dismissed_until_ms,omitempty"`
}

// Highlight tells the presentation layer to recolor one line. A nil
// severity clears the highlight.
type Highlight struct {
	UtilityID string    `json:"utility_id"`
	Severity  *Severity `json:"severity"`
}

// TickResult is the output of one proximity tick: the live alert set
// ordered nearest-first plus highlight directives for every line whose
// severity changed since the previous tick. NoFix flags a tick that ran
// without any position reference; it is a normal transient state, not an
// error.
type TickResult struct {
	Alerts     []ProximityAlert `json:"alerts"`
	Highlights []Highlight      `json:"highlights,omitempty"`
	NoFix      bool             `json:"no_fix,omitempty"`
}

// MainConnection is the nearest same-kind main found while drawing a new
// service line, with the exact snap point on it.
type MainConnection struct {
	Line           UtilityLine `json:"line"`
	SnapPoint      GeoPoint    `json:"snap_point"`
	DistanceMeters float64     `json:"distance_m"`
	SegmentIndex   int         `json:"segment_index"`
	T              float64     `json:"t"`
}
