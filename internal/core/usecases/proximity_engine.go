package usecases

import (
	"log/slog"
	"sort"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/pkg/geospatial"
)

// DefaultDismissCooldownMs is how long a dismissed alert stays suppressed
// before the tick logic may re-arm it.
const DefaultDismissCooldownMs = 300000

// boundsMargin pads the per-line bounding box used to pre-screen candidate
// lines, in meters. The pad is far larger than the planar approximation
// error at alert range, so pre-screening never drops a line the exact
// geodesic distance would keep.
const boundsMargin = 10.0

// ProximityEngine maintains the live alert set for one device session. Each
// tick measures the reference point against every recorded line in the
// current snapshot, classifies severity, and diffs the result against the
// previous tick. The reference is the operator-set excavation site when one
// is pinned, otherwise the live filtered pose.
//
// The engine has no clock of its own; callers pass now explicitly, which
// keeps every tick deterministic. Instances are not safe for concurrent
// use; the monitor serializes access per device session.
type ProximityEngine struct {
	lines      ports.LineSnapshot
	logger     *slog.Logger
	cooldownMs int64

	site           *domain.GeoPoint
	alerts         map[string]*domain.ProximityAlert
	dismissedUntil map[string]int64
	prevSeverity   map[string]domain.Severity
}

// NewProximityEngine creates an engine over the given line snapshot. A zero
// cooldownMs selects the default cool-down.
func NewProximityEngine(lines ports.LineSnapshot, logger *slog.Logger, cooldownMs int64) *ProximityEngine {
	if cooldownMs <= 0 {
		cooldownMs = DefaultDismissCooldownMs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProximityEngine{
		lines:          lines,
		logger:         logger,
		cooldownMs:     cooldownMs,
		alerts:         make(map[string]*domain.ProximityAlert),
		dismissedUntil: make(map[string]int64),
		prevSeverity:   make(map[string]domain.Severity),
	}
}

// SetExcavationSite pins the proximity reference to a fixed dig point.
// Passing nil unpins it, reverting to the live filtered pose.
func (e *ProximityEngine) SetExcavationSite(p *domain.GeoPoint) {
	if p == nil {
		e.site = nil
		return
	}
	cp := *p
	e.site = &cp
}

// ExcavationSite returns the pinned dig point, or nil when the engine
// follows the pose.
func (e *ProximityEngine) ExcavationSite() *domain.GeoPoint {
	if e.site == nil {
		return nil
	}
	cp := *e.site
	return &cp
}

// Tick recomputes the live alert set against the current line snapshot.
// When neither an excavation site nor a pose is available the result
// carries NoFix and the alert state is left exactly as the previous tick
// produced it, so a GPS dropout never wipes standing alerts.
func (e *ProximityEngine) Tick(pose *domain.FilteredPose, nowMs int64) domain.TickResult {
	var ref domain.GeoPoint
	switch {
	case e.site != nil:
		ref = *e.site
	case pose != nil:
		ref = domain.GeoPoint{Lat: pose.Lat, Lon: pose.Lon}
	default:
		return domain.TickResult{Alerts: []domain.ProximityAlert{}, NoFix: true}
	}

	outerMeters := domain.WarningMaxFeet / domain.FeetPerMeter

	// Measure every well-formed line. Malformed lines are logged and
	// skipped for the tick; whatever alert state they carried is frozen
	// rather than dropped, since the line itself has not moved.
	lines := e.lines.Lines()
	feet := make(map[string]float64, len(lines))
	frozen := make(map[string]bool)
	for i := range lines {
		line := &lines[i]
		if err := line.Validate(); err != nil {
			e.logger.Warn("skipping malformed utility line", "line_id", line.ID, "error", err)
			frozen[line.ID] = true
			continue
		}

		bounds := geospatial.ExpandBounds(geospatial.PolylineBounds(line.Vertices), outerMeters+boundsMargin)
		if !bounds.Contains(ref.Lat, ref.Lon) {
			continue
		}

		nearest, ok := geospatial.MinDistanceToPolyline(ref, line.Vertices)
		if !ok {
			continue
		}
		feet[line.ID] = geospatial.MetersToFeet(nearest.DistanceMeters)
	}

	// Drop alerts that no longer qualify: line out of range, gone from the
	// snapshot, or suppressed by an active dismissal.
	for id := range e.alerts {
		if frozen[id] {
			continue
		}
		d, ok := feet[id]
		if !ok || d > domain.WarningMaxFeet || e.isSuppressed(id, nowMs) {
			delete(e.alerts, id)
		}
	}

	// Upsert qualifying lines. Updates preserve alert identity: FirstSeenMs
	// never changes while the alert stays live.
	for id, d := range feet {
		if d > domain.WarningMaxFeet || e.isSuppressed(id, nowMs) {
			continue
		}
		sev := domain.SeverityForDistanceFeet(d)
		if a, ok := e.alerts[id]; ok {
			a.DistanceFeet = d
			a.Severity = sev
			a.LastSeenMs = nowMs
		} else {
			e.alerts[id] = &domain.ProximityAlert{
				UtilityID:    id,
				Severity:     sev,
				DistanceFeet: d,
				FirstSeenMs:  nowMs,
				LastSeenMs:   nowMs,
			}
		}
	}

	// Diff severities against the previous tick to produce highlight
	// directives. An id absent from the live set highlights to nil so the
	// presentation layer clears its color.
	current := make(map[string]domain.Severity, len(e.alerts))
	for id, a := range e.alerts {
		current[id] = a.Severity
	}
	var highlights []domain.Highlight
	for id, sev := range current {
		if e.prevSeverity[id] != sev {
			s := sev
			highlights = append(highlights, domain.Highlight{UtilityID: id, Severity: &s})
		}
	}
	for id := range e.prevSeverity {
		if _, ok := current[id]; !ok {
			highlights = append(highlights, domain.Highlight{UtilityID: id, Severity: nil})
		}
	}
	sort.Slice(highlights, func(i, j int) bool {
		return highlights[i].UtilityID < highlights[j].UtilityID
	})
	e.prevSeverity = current

	return domain.TickResult{Alerts: e.ActiveAlerts(), Highlights: highlights}
}

// ActiveAlerts returns a copy of the live alert set, nearest first.
func (e *ProximityEngine) ActiveAlerts() []domain.ProximityAlert {
	out := make([]domain.ProximityAlert, 0, len(e.alerts))
	for _, a := range e.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceFeet != out[j].DistanceFeet {
			return out[i].DistanceFeet < out[j].DistanceFeet
		}
		return out[i].UtilityID < out[j].UtilityID
	})
	return out
}

// Dismiss removes the live alert for a utility line immediately and
// suppresses it until the cool-down elapses. It returns the timestamp at
// which the tick logic may re-arm the alert. No timer is involved: the
// next tick at or after that timestamp re-creates the alert if the line is
// still in range.
func (e *ProximityEngine) Dismiss(utilityID string, nowMs int64) int64 {
	until := nowMs + e.cooldownMs
	e.dismissedUntil[utilityID] = until
	delete(e.alerts, utilityID)
	return until
}

// Reset drops all live alerts, pending dismissals, and highlight history.
// The pinned excavation site is kept; clearing it is a separate operator
// action.
func (e *ProximityEngine) Reset() {
	e.alerts = make(map[string]*domain.ProximityAlert)
	e.dismissedUntil = make(map[string]int64)
	e.prevSeverity = make(map[string]domain.Severity)
}

// isSuppressed reports whether a dismissal cool-down is active for the id
// at nowMs, expiring entries lazily.
func (e *ProximityEngine) isSuppressed(id string, nowMs int64) bool {
	until, ok := e.dismissedUntil[id]
	if !ok {
		return false
	}
	if nowMs >= until {
		delete(e.dismissedUntil, id)
		return false
	}
	return true
}
