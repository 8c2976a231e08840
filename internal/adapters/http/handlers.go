package http

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
)

// SystemStats holds row counts across the sentry tables.
type SystemStats struct {
	Sites       int    `json:"sites"`
	Lines       int    `json:"lines"`
	AlertEvents int    `json:"alert_events"`
	Incidents   int    `json:"incidents"`
	LastImport  string `json:"last_import,omitempty"`
}

// SystemStatsHandler returns row counts from the sentry tables.
func SystemStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats SystemStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM sites),
				(SELECT count(*) FROM utility_lines),
				(SELECT count(*) FROM alert_events),
				(SELECT count(*) FROM incidents),
				COALESCE((SELECT max(updated_at)::text FROM utility_lines), '')
		`)
		if err := row.Scan(&stats.Sites, &stats.Lines, &stats.AlertEvents,
			&stats.Incidents, &stats.LastImport); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// resolveSite looks a site up by UUID first, then by slug, so routes accept
// either form of identifier. The returned error is already a rendered
// response; callers just return it.
func resolveSite(c *fiber.Ctx, deps *Dependencies, idOrSlug string) (*domain.ExcavationSite, error) {
	if idOrSlug == "" {
		return nil, errBadRequest(c, "site id is required")
	}
	site, err := deps.Sites.GetByID(c.Context(), idOrSlug)
	if err == nil {
		return site, nil
	}
	site, err = deps.Sites.GetBySlug(c.Context(), idOrSlug)
	if err != nil {
		return nil, errNotFound(c, "site not found")
	}
	return site, nil
}

// ListSitesHandler returns all excavation sites.
func ListSitesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sites, err := deps.Sites.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		total := len(sites)
		if offset >= total {
			sites = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			sites = sites[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: sites, Pagination: pg})
	}
}

// CreateSiteHandler registers a new excavation site.
func CreateSiteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Slug   string           `json:"slug"`
			Name   string           `json:"name"`
			Center *domain.GeoPoint `json:"center"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		site, err := deps.Sites.Create(c.Context(), req.Name, req.Slug, req.Center)
		if err != nil {
			if isUniqueViolation(err) {
				return errConflict(c, "site slug already exists")
			}
			return errBadRequest(c, err.Error())
		}

		return c.Status(201).JSON(site)
	}
}

// GetSiteHandler returns a single site by UUID or slug.
func GetSiteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(site)
	}
}

// ArchiveSiteHandler marks a completed site as archived.
func ArchiveSiteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		if err := deps.Sites.Archive(c.Context(), site.ID); err != nil {
			return errInternal(c, err.Error())
		}

		site.Status = domain.SiteArchived
		return c.JSON(site)
	}
}

// SiteStatsHandler returns the utility-map summary for a single site.
func SiteStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		stats, err := deps.Lines.Stats(c.Context(), site.ID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=120")
		return c.JSON(fiber.Map{
			"site":  site,
			"stats": stats,
		})
	}
}

// ListLinesHandler returns the recorded utility lines of a site,
// optionally filtered by kind.
func ListLinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		lines, err := deps.Lines.ListBySite(c.Context(), site.ID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		if k := c.Query("kind"); k != "" {
			kind, err := domain.ParseUtilityKind(k)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			// The service may hand back a cached slice; filter into a fresh one.
			filtered := make([]domain.UtilityLine, 0, len(lines))
			for _, l := range lines {
				if l.Kind == kind {
					filtered = append(filtered, l)
				}
			}
			lines = filtered
		}

		// Pagination
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(lines)
		if offset >= total {
			lines = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			lines = lines[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: lines, Pagination: pg})
	}
}

// UpsertLineHandler records or updates a single utility line.
func UpsertLineHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		var req struct {
			ID       string            `json:"id"`
			Kind     string            `json:"kind"`
			Class    string            `json:"class"`
			Vertices []domain.GeoPoint `json:"vertices"`
			Metadata map[string]any    `json:"metadata"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		kind, err := domain.ParseUtilityKind(req.Kind)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		class := domain.ClassMain
		if req.Class != "" {
			if class, err = domain.ParseLineClass(req.Class); err != nil {
				return errBadRequest(c, err.Error())
			}
		}

		line := &domain.UtilityLine{
			ID:       req.ID,
			SiteID:   site.ID,
			Kind:     kind,
			Class:    class,
			Vertices: req.Vertices,
			Metadata: req.Metadata,
		}
		if err := deps.Lines.Upsert(c.Context(), line); err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.Status(201).JSON(line)
	}
}

// ImportLinesHandler ingests a GeoJSON FeatureCollection of utility lines.
// Unusable features are skipped, not fatal, so a survey export with a few
// bad rows still loads.
func ImportLinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "request body must be a GeoJSON FeatureCollection")
		}

		imported, skipped, err := deps.Lines.ImportGeoJSON(c.Context(), site.ID, body)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.JSON(fiber.Map{
			"imported": imported,
			"skipped":  skipped,
		})
	}
}

// NearbyLinesHandler returns utility lines within a radius of a point.
func NearbyLinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 25)
		limit := c.QueryInt("limit", 50)

		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > 1000 {
			return errBadRequest(c, "radius must be between 1 and 1000 meters")
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		lines, err := deps.Lines.FindNearby(c.Context(), site.ID, lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(lines)
	}
}

// GetLineHandler returns a single utility line by ID.
func GetLineHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "line id is required")
		}
		line, err := deps.Lines.GetByID(c.Context(), id)
		if err != nil {
			return errNotFound(c, "line not found")
		}
		return c.JSON(line)
	}
}

// NearestMainHandler finds the closest same-kind main to a point, for
// snapping a newly drawn service line to its supply.
func NearestMainHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}

		kind, err := domain.ParseUtilityKind(c.Query("kind"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		radius := c.QueryFloat("radius", 0)
		if radius > 500 {
			return errBadRequest(c, "radius must be at most 500 meters")
		}

		conn, err := deps.Lines.NearestMain(c.Context(), site.ID,
			domain.GeoPoint{Lat: lat, Lon: lon}, kind, radius)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if conn == nil {
			return errNotFound(c, "no main of that kind within range")
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(conn)
	}
}

// ActiveAlertsHandler returns the device's most recent proximity tick from
// the cache. A miss means the monitor has not seen the device lately.
func ActiveAlertsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		device := c.Query("device")
		if device == "" {
			return errBadRequest(c, "device query parameter is required")
		}
		if deps.Cache == nil {
			return errInternal(c, "cache not available")
		}

		raw, err := deps.Cache.Get(c.Context(), fmt.Sprintf("dig:tick:%s:%s", site.ID, device))
		if err != nil {
			return errNotFound(c, "no recent tick for device")
		}

		var tick domain.TickEvent
		if err := json.Unmarshal(raw, &tick); err != nil {
			return errInternal(c, "corrupt tick in cache")
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(tick)
	}
}

// AlertHistoryHandler returns the persisted alert transitions of a site,
// newest first.
func AlertHistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		events, err := deps.Events.ListBySite(c.Context(), site.ID, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(events)
	}
}

// ListIncidentsHandler returns a site's unresolved incidents.
func ListIncidentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		incidents, err := deps.Incidents.ListOpen(c.Context(), site.ID)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(incidents)
	}
}

// CloseIncidentHandler resolves an incident after the supervisor has
// handled it.
func CloseIncidentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "incident id is required")
		}

		incident, err := deps.Incidents.GetByID(c.Context(), id)
		if err != nil {
			return errNotFound(c, "incident not found")
		}

		if err := deps.Incidents.Close(c.Context(), incident.ID); err != nil {
			return errInternal(c, err.Error())
		}

		incident.Status = domain.IncidentClosed
		return c.JSON(incident)
	}
}

// IngestSampleHandler accepts one raw GPS fix from a device and queues it
// for the monitor. The HTTP path is a fallback for devices without a
// direct NATS connection, so it only validates and enqueues.
func IngestSampleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}
		device := c.Params("device")
		if device == "" {
			return errBadRequest(c, "device id is required")
		}

		var req struct {
			Lat         float64  `json:"lat"`
			Lon         float64  `json:"lon"`
			AccuracyM   float64  `json:"accuracy_m"`
			HeadingDeg  *float64 `json:"heading_deg"`
			SpeedMps    *float64 `json:"speed_mps"`
			TimestampMs int64    `json:"timestamp_ms"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == 0 && req.Lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if req.TimestampMs == 0 {
			req.TimestampMs = time.Now().UnixMilli()
		}

		ev := &domain.SampleEvent{
			SiteID:   site.ID,
			DeviceID: device,
			Sample: domain.RawSample{
				Coords: domain.Coordinates{
					Lat:            req.Lat,
					Lon:            req.Lon,
					AccuracyMeters: req.AccuracyM,
					HeadingDeg:     req.HeadingDeg,
					SpeedMps:       req.SpeedMps,
				},
				TimestampMs: req.TimestampMs,
			},
		}
		if err := deps.Publisher.PublishSample(c.Context(), ev); err != nil {
			return errInternal(c, err.Error())
		}

		return c.Status(202).JSON(fiber.Map{"status": "queued"})
	}
}

// DeviceCommandHandler queues a crew command (dismiss, set_site, clear_site,
// reset_filters) for the monitor.
func DeviceCommandHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}
		device := c.Params("device")
		if device == "" {
			return errBadRequest(c, "device id is required")
		}

		var req struct {
			Action    string           `json:"action"`
			UtilityID string           `json:"utility_id"`
			Point     *domain.GeoPoint `json:"point"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		switch req.Action {
		case domain.CommandDismiss:
			if req.UtilityID == "" {
				return errBadRequest(c, "utility_id is required for dismiss")
			}
		case domain.CommandSetSite:
			if req.Point == nil {
				return errBadRequest(c, "point is required for set_site")
			}
		case domain.CommandClearSite, domain.CommandResetFilters:
		default:
			return errBadRequest(c, "unknown action "+req.Action)
		}

		ev := &domain.CommandEvent{
			SiteID:    site.ID,
			DeviceID:  device,
			Action:    req.Action,
			UtilityID: req.UtilityID,
			Point:     req.Point,
			IssuedMs:  time.Now().UnixMilli(),
		}
		if err := deps.Publisher.PublishCommand(c.Context(), ev); err != nil {
			return errInternal(c, err.Error())
		}

		return c.Status(202).JSON(fiber.Map{"status": "queued"})
	}
}

// DevicePoseHandler returns the device's latest filtered pose from the cache.
func DevicePoseHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}
		device := c.Params("device")
		if device == "" {
			return errBadRequest(c, "device id is required")
		}
		if deps.Cache == nil {
			return errInternal(c, "cache not available")
		}

		raw, err := deps.Cache.Get(c.Context(), fmt.Sprintf("dig:pose:%s:%s", site.ID, device))
		if err != nil {
			return errNotFound(c, "no recent pose for device")
		}

		var pose domain.PoseEvent
		if err := json.Unmarshal(raw, &pose); err != nil {
			return errInternal(c, "corrupt pose in cache")
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(pose)
	}
}

// LegacyProximityHandler is the original stateless proximity check: one
// fix in, one tick out, no filtering and no session. Kept for field tools
// that predate the streaming monitor; new clients should POST samples and
// read /alerts instead.
func LegacyProximityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		site, err := resolveSite(c, deps, c.Params("id"))
		if err != nil {
			return err
		}

		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		accuracy := c.QueryFloat("accuracy", 5)
		if lat == 0 || lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}

		lines, err := deps.Lines.ListBySite(c.Context(), site.ID)
		if err != nil {
			return errInternal(c, err.Error())
		}

		engine := usecases.NewProximityEngine(ports.LineSnapshotFunc(func() []domain.UtilityLine {
			return lines
		}), LoggerFromCtx(c.UserContext()), 0)

		nowMs := time.Now().UnixMilli()
		result := engine.Tick(&domain.FilteredPose{
			Lat:            lat,
			Lon:            lon,
			AccuracyMeters: accuracy,
			TimestampMs:    nowMs,
		}, nowMs)

		c.Set("Cache-Control", "no-store")
		return c.JSON(result)
	}
}
