package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/pkg/metrics"
)

// Monitor defaults.
const (
	DefaultTickInterval   = 2500 * time.Millisecond
	DefaultSessionTTL     = 10 * time.Minute
	DefaultLineRefreshTTL = 60 * time.Second
)

// Live-state cache TTLs in seconds, short because this data goes stale in
// a couple of ticks.
const (
	poseCacheTTL = 30
	tickCacheTTL = 15
)

// MonitorConfig tunes the monitoring pipeline. Zero values fall back to the
// documented defaults.
type MonitorConfig struct {
	TickInterval       time.Duration
	PositionCapacity   int
	AccuracyThresholdM float64
	MaxSpeedMps        float64
	HeadingCapacity    int
	CooldownMs         int64
	SessionTTL         time.Duration
	LineRefreshTTL     time.Duration
}

// MonitorService runs the live proximity pipeline: it feeds device samples
// through the filters, drives the per-device engines on a fixed tick, and
// fans tick results out to the bus, the cache, and the audit log. One
// instance serves many devices; each device gets its own session with its
// own filters and engine, serialized by the session mutex.
type MonitorService struct {
	lines  *LineService
	events ports.AlertEventRepository
	pub    ports.EventPublisher
	cache  ports.CacheService
	logger *slog.Logger
	clock  clockwork.Clock
	cfg    MonitorConfig

	mu       sync.Mutex
	sessions map[string]*deviceSession
}

// deviceSession is the monitoring state of one device on one site.
type deviceSession struct {
	siteID   string
	deviceID string

	mu         sync.Mutex
	position   *PositionFilter
	heading    *HeadingFilter
	engine     *ProximityEngine
	lastSev    map[string]domain.Severity
	lastSample time.Time
}

// siteLineSnapshot serves the engine's per-tick line snapshot from the line
// service, refreshing on a TTL. It holds the last good result so a storage
// hiccup degrades to stale geometry instead of an empty map that would wipe
// standing alerts.
type siteLineSnapshot struct {
	svc    *LineService
	logger *slog.Logger
	clock  clockwork.Clock
	siteID string
	ttl    time.Duration

	mu       sync.Mutex
	lines    []domain.UtilityLine
	loadedAt time.Time
}

func (s *siteLineSnapshot) Lines() []domain.UtilityLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadedAt.IsZero() && s.clock.Since(s.loadedAt) < s.ttl {
		return s.lines
	}

	lines, err := s.svc.ListBySite(context.Background(), s.siteID)
	if err != nil {
		s.logger.Warn("line snapshot refresh failed, keeping stale lines", "site_id", s.siteID, "error", err)
		s.loadedAt = s.clock.Now()
		return s.lines
	}
	s.lines = lines
	s.loadedAt = s.clock.Now()
	return s.lines
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	lines *LineService,
	events ports.AlertEventRepository,
	pub ports.EventPublisher,
	cache ports.CacheService,
	logger *slog.Logger,
	clock clockwork.Clock,
	cfg MonitorConfig,
) *MonitorService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.LineRefreshTTL <= 0 {
		cfg.LineRefreshTTL = DefaultLineRefreshTTL
	}
	return &MonitorService{
		lines:    lines,
		events:   events,
		pub:      pub,
		cache:    cache,
		logger:   logger,
		clock:    clock,
		cfg:      cfg,
		sessions: make(map[string]*deviceSession),
	}
}

// Run drives the proximity ticks until ctx is cancelled. Call it from a
// dedicated goroutine; HandleSample and HandleCommand are safe to call
// concurrently with it.
func (m *MonitorService) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	m.logger.Info("monitor loop started", "tick_interval", m.cfg.TickInterval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor loop stopped")
			return nil
		case <-ticker.Chan():
			m.tickAll(ctx)
		}
	}
}

// HandleSample feeds one raw fix through the device's filters and publishes
// the updated pose. Gate rejections are expected sensor noise; they count
// in metrics but are not errors.
func (m *MonitorService) HandleSample(ctx context.Context, ev *domain.SampleEvent) error {
	if ev.SiteID == "" || ev.DeviceID == "" {
		return fmt.Errorf("sample event missing site or device id")
	}
	s := m.session(ev.SiteID, ev.DeviceID)

	s.mu.Lock()
	pose, reason := s.position.AddSample(ev.Sample)
	var headingDeg float64
	if ev.Sample.Coords.HeadingDeg != nil {
		headingDeg = s.heading.AddHeading(*ev.Sample.Coords.HeadingDeg)
	} else {
		headingDeg = s.heading.FilteredHeading()
	}
	s.lastSample = m.clock.Now()
	s.mu.Unlock()

	metrics.SamplesTotal.Inc()
	if reason != domain.RejectNone {
		metrics.SampleRejects.WithLabelValues(string(reason)).Inc()
		m.logger.Debug("sample rejected",
			"site_id", ev.SiteID, "device_id", ev.DeviceID, "reason", string(reason))
	}

	poseEv := &domain.PoseEvent{
		SiteID:     ev.SiteID,
		DeviceID:   ev.DeviceID,
		Pose:       pose,
		HeadingDeg: headingDeg,
	}
	if err := m.pub.PublishPose(ctx, poseEv); err != nil {
		m.logger.Warn("publish pose failed", "device_id", ev.DeviceID, "error", err)
	}
	if m.cache != nil {
		if data, err := json.Marshal(poseEv); err == nil {
			_ = m.cache.Set(ctx, fmt.Sprintf("dig:pose:%s:%s", ev.SiteID, ev.DeviceID), data, poseCacheTTL)
		}
	}
	return nil
}

// HandleCommand applies one operator intent to the device's session.
// Unknown actions are logged and dropped so a bad message is not
// redelivered forever.
func (m *MonitorService) HandleCommand(ctx context.Context, ev *domain.CommandEvent) error {
	if ev.SiteID == "" || ev.DeviceID == "" {
		return fmt.Errorf("command event missing site or device id")
	}
	s := m.session(ev.SiteID, ev.DeviceID)

	nowMs := ev.IssuedMs
	if nowMs <= 0 {
		nowMs = m.clock.Now().UnixMilli()
	}

	switch ev.Action {
	case domain.CommandDismiss:
		if ev.UtilityID == "" {
			m.logger.Warn("dismiss command without utility id",
				"site_id", ev.SiteID, "device_id", ev.DeviceID)
			return nil
		}
		s.mu.Lock()
		var dismissed *domain.ProximityAlert
		for _, a := range s.engine.ActiveAlerts() {
			if a.UtilityID == ev.UtilityID {
				cp := a
				dismissed = &cp
				break
			}
		}
		until := s.engine.Dismiss(ev.UtilityID, nowMs)
		delete(s.lastSev, ev.UtilityID)
		s.mu.Unlock()

		if dismissed != nil {
			m.recordAlertEvent(ctx, &domain.AlertEvent{
				SiteID:           ev.SiteID,
				DeviceID:         ev.DeviceID,
				UtilityID:        ev.UtilityID,
				Event:            domain.AlertDismissed,
				Severity:         dismissed.Severity,
				DistanceFeet:     dismissed.DistanceFeet,
				DismissedUntilMs: until,
			})
		}
		m.logger.Info("alert dismissed",
			"site_id", ev.SiteID, "device_id", ev.DeviceID,
			"utility_id", ev.UtilityID, "until_ms", until)

	case domain.CommandSetSite:
		if ev.Point == nil {
			m.logger.Warn("set_site command without a point",
				"site_id", ev.SiteID, "device_id", ev.DeviceID)
			return nil
		}
		s.mu.Lock()
		s.engine.SetExcavationSite(ev.Point)
		s.mu.Unlock()
		m.logger.Info("excavation point pinned",
			"site_id", ev.SiteID, "device_id", ev.DeviceID,
			"lat", ev.Point.Lat, "lon", ev.Point.Lon)

	case domain.CommandClearSite:
		s.mu.Lock()
		s.engine.SetExcavationSite(nil)
		s.mu.Unlock()
		m.logger.Info("excavation point cleared",
			"site_id", ev.SiteID, "device_id", ev.DeviceID)

	case domain.CommandResetFilters:
		s.mu.Lock()
		s.position.Reset()
		s.heading.Reset()
		s.engine.Reset()
		s.lastSev = make(map[string]domain.Severity)
		s.mu.Unlock()
		m.logger.Info("device filters reset",
			"site_id", ev.SiteID, "device_id", ev.DeviceID)

	default:
		m.logger.Warn("unknown command action", "action", ev.Action,
			"site_id", ev.SiteID, "device_id", ev.DeviceID)
	}
	return nil
}

// SessionCount returns the number of live device sessions.
func (m *MonitorService) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// TickNow runs one tick round immediately, outside the timer cadence.
func (m *MonitorService) TickNow(ctx context.Context) {
	m.tickAll(ctx)
}

func (m *MonitorService) session(siteID, deviceID string) *deviceSession {
	key := siteID + "/" + deviceID

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}

	snap := &siteLineSnapshot{
		svc:    m.lines,
		logger: m.logger,
		clock:  m.clock,
		siteID: siteID,
		ttl:    m.cfg.LineRefreshTTL,
	}
	s := &deviceSession{
		siteID:   siteID,
		deviceID: deviceID,
		position: NewPositionFilter(m.cfg.PositionCapacity, m.cfg.AccuracyThresholdM, m.cfg.MaxSpeedMps),
		heading:  NewHeadingFilter(m.cfg.HeadingCapacity),
		engine: NewProximityEngine(snap,
			m.logger.With("site_id", siteID, "device_id", deviceID), m.cfg.CooldownMs),
		lastSev:    make(map[string]domain.Severity),
		lastSample: m.clock.Now(),
	}
	m.sessions[key] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.logger.Info("device session started", "site_id", siteID, "device_id", deviceID)
	return s
}

func (m *MonitorService) tickAll(ctx context.Context) {
	now := m.clock.Now()
	nowMs := now.UnixMilli()

	m.mu.Lock()
	sessions := make([]*deviceSession, 0, len(m.sessions))
	for key, s := range m.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSample)
		s.mu.Unlock()
		if idle > m.cfg.SessionTTL {
			delete(m.sessions, key)
			m.logger.Info("device session expired",
				"site_id", s.siteID, "device_id", s.deviceID, "idle", idle.String())
			continue
		}
		sessions = append(sessions, s)
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	active := 0
	for _, s := range sessions {
		res := m.tickSession(ctx, s, nowMs)
		active += len(res.Alerts)
	}
	metrics.TicksTotal.Add(float64(len(sessions)))
	metrics.ActiveAlerts.Set(float64(active))
}

func (m *MonitorService) tickSession(ctx context.Context, s *deviceSession, nowMs int64) domain.TickResult {
	s.mu.Lock()
	pose := s.position.FilteredPose()
	res := s.engine.Tick(pose, nowMs)

	// Translate highlight diffs into audit events while the previous
	// severity is still known.
	var events []*domain.AlertEvent
	for _, h := range res.Highlights {
		prev, known := s.lastSev[h.UtilityID]
		ev := &domain.AlertEvent{
			SiteID:    s.siteID,
			DeviceID:  s.deviceID,
			UtilityID: h.UtilityID,
		}
		switch {
		case h.Severity == nil:
			if !known {
				continue
			}
			delete(s.lastSev, h.UtilityID)
			ev.Event = domain.AlertCleared
			ev.Severity = prev
		case !known:
			s.lastSev[h.UtilityID] = *h.Severity
			ev.Event = domain.AlertRaised
			ev.Severity = *h.Severity
			ev.DistanceFeet = alertDistance(res, h.UtilityID)
		default:
			s.lastSev[h.UtilityID] = *h.Severity
			ev.Event = domain.AlertSeverityChanged
			ev.Severity = *h.Severity
			ev.DistanceFeet = alertDistance(res, h.UtilityID)
		}
		events = append(events, ev)
	}
	s.mu.Unlock()

	for _, ev := range events {
		m.recordAlertEvent(ctx, ev)
	}

	tickEv := &domain.TickEvent{SiteID: s.siteID, DeviceID: s.deviceID, AtMs: nowMs, Result: res}
	if err := m.pub.PublishTick(ctx, tickEv); err != nil {
		m.logger.Warn("publish tick failed",
			"site_id", s.siteID, "device_id", s.deviceID, "error", err)
	}
	if m.cache != nil {
		if data, err := json.Marshal(tickEv); err == nil {
			_ = m.cache.Set(ctx, fmt.Sprintf("dig:tick:%s:%s", s.siteID, s.deviceID), data, tickCacheTTL)
		}
	}
	return res
}

func (m *MonitorService) recordAlertEvent(ctx context.Context, ev *domain.AlertEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = m.clock.Now()
	}
	metrics.AlertEventsTotal.WithLabelValues(ev.Event).Inc()
	if m.events == nil {
		return
	}
	if err := m.events.Insert(ctx, ev); err != nil {
		m.logger.Warn("record alert event failed",
			"utility_id", ev.UtilityID, "event", ev.Event, "error", err)
	}
}

func alertDistance(res domain.TickResult, utilityID string) float64 {
	for _, a := range res.Alerts {
		if a.UtilityID == utilityID {
			return a.DistanceFeet
		}
	}
	return 0
}
