package usecases

import (
	"sort"
	"strings"
	"sync"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// DefaultCriticalStreak is how many consecutive critical ticks a line must
// hold before the alert escalates to an incident.
const DefaultCriticalStreak = 3

// EscalationService watches tick results for sustained critical proximity.
// A single critical tick can be a GPS wobble; a streak of them means a crew
// is genuinely parked on top of a line and the supervisor gets paged.
type EscalationService struct {
	threshold int

	mu      sync.Mutex
	streaks map[string]int
}

// NewEscalationService creates a new EscalationService.
func NewEscalationService(threshold int) *EscalationService {
	if threshold <= 0 {
		threshold = DefaultCriticalStreak
	}
	return &EscalationService{
		threshold: threshold,
		streaks:   make(map[string]int),
	}
}

// ProcessTick updates critical streaks from one tick and returns the alerts
// that just crossed the escalation threshold, ordered by utility id. No-fix
// ticks are ignored: a GPS dropout neither extends nor breaks a streak.
func (s *EscalationService) ProcessTick(ev *domain.TickEvent) []domain.ProximityAlert {
	if ev.Result.NoFix {
		return nil
	}
	prefix := ev.SiteID + "/" + ev.DeviceID + "/"

	critical := make(map[string]domain.ProximityAlert)
	for _, a := range ev.Result.Alerts {
		if a.Severity == domain.SeverityCritical {
			critical[a.UtilityID] = a
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.streaks {
		if strings.HasPrefix(key, prefix) {
			if _, ok := critical[strings.TrimPrefix(key, prefix)]; !ok {
				delete(s.streaks, key)
			}
		}
	}

	var escalate []domain.ProximityAlert
	for id, a := range critical {
		key := prefix + id
		s.streaks[key]++
		if s.streaks[key] == s.threshold {
			escalate = append(escalate, a)
		}
	}
	sort.Slice(escalate, func(i, j int) bool {
		return escalate[i].UtilityID < escalate[j].UtilityID
	})
	return escalate
}
