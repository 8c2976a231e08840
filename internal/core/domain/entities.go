package domain

import (
	"fmt"
	"math"
	"time"
)

// UtilityKind identifies what a buried line carries.
type UtilityKind string

const (
	KindWater    UtilityKind = "water"
	KindGas      UtilityKind = "gas"
	KindElectric UtilityKind = "electric"
	KindSewer    UtilityKind = "sewer"
	KindTelecom  UtilityKind = "telecom"
)

// ParseUtilityKind validates a kind string from an API request or import file.
func ParseUtilityKind(s string) (UtilityKind, error) {
	switch UtilityKind(s) {
	case KindWater, KindGas, KindElectric, KindSewer, KindTelecom:
		return UtilityKind(s), nil
	}
	return "", fmt.Errorf("unknown utility kind %q", s)
}

// LineClass distinguishes distribution mains from service laterals.
type LineClass string

const (
	ClassMain    LineClass = "main"
	ClassService LineClass = "service"
)

// ParseLineClass validates a line class string.
func ParseLineClass(s string) (LineClass, error) {
	switch LineClass(s) {
	case ClassMain, ClassService:
		return LineClass(s), nil
	}
	return "", fmt.Errorf("unknown line class %q", s)
}

// UtilityLine is a recorded underground pipe or cable, stored as an ordered
// vertex polyline. A line needs at least two vertices with finite coordinates
// to take part in distance computation; the monitor treats loaded lines as an
// immutable snapshot for the duration of one tick.
type UtilityLine struct {
	ID        string         `json:"id"`
	SiteID    string         `json:"site_id"`
	Kind      UtilityKind    `json:"kind"`
	Class     LineClass      `json:"class"`
	Vertices  []GeoPoint     `json:"vertices"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Validate reports whether the line is eligible for distance computation.
// It returns a *MalformedGeometryError so callers can log and skip the line
// without aborting the surrounding tick or import.
func (l *UtilityLine) Validate() error {
	if len(l.Vertices) < 2 {
		return &MalformedGeometryError{LineID: l.ID, Reason: fmt.Sprintf("%d vertices, need at least 2", len(l.Vertices))}
	}
	for i, v := range l.Vertices {
		if !isFinite(v.Lat) || !isFinite(v.Lon) {
			return &MalformedGeometryError{LineID: l.ID, Reason: fmt.Sprintf("non-finite coordinate at vertex %d", i)}
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SiteStatus is the lifecycle state of an excavation site.
type SiteStatus string

const (
	SiteActive   SiteStatus = "active"
	SiteArchived SiteStatus = "archived"
)

// ExcavationSite is a planned dig location with its recorded utility map.
// Center is informational; the live dig reference point is set per device
// through the command stream.
type ExcavationSite struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	Status    SiteStatus `json:"status"`
	Center    *GeoPoint  `json:"center,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SiteStats summarizes the recorded utility map of a site.
type SiteStats struct {
	SiteID       string              `json:"site_id"`
	LineCount    int                 `json:"line_count"`
	ByKind       map[UtilityKind]int `json:"by_kind"`
	MainCount    int                 `json:"main_count"`
	ServiceCount int                 `json:"service_count"`
	LastImportAt *time.Time          `json:"last_import_at,omitempty"`
}

// IncidentStatus values for escalated alerts.
const (
	IncidentOpen     = "open"
	IncidentNotified = "notified"
	IncidentClosed   = "closed"
)

// Incident records a critical proximity alert that persisted long enough to
// be escalated to the site supervisor.
type Incident struct {
	ID           string     `json:"id"`
	SiteID       string     `json:"site_id"`
	DeviceID     string     `json:"device_id"`
	UtilityID    string     `json:"utility_id"`
	Severity     Severity   `json:"severity"`
	DistanceFeet float64    `json:"distance_feet"`
	Status       string     `json:"status"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}
