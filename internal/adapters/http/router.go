package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/digsentry/digsentry/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 240 requests per minute per IP. Sample ingest from a
	// full crew runs at sensor cadence, so the ceiling sits well above the
	// browse-traffic default.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Sunset headers for the pre-streaming proximity check
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{
			Path:        "/v1/sites/:id/proximity",
			SunsetDate:  time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC),
			Alternative: "/v1/sites/:id/alerts",
		},
	}))

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/sites", timeout.NewWithContext(ListSitesHandler(deps), 15*time.Second))
	v1.Post("/sites", timeout.NewWithContext(CreateSiteHandler(deps), 15*time.Second))
	v1.Get("/sites/:id", timeout.NewWithContext(GetSiteHandler(deps), 15*time.Second))
	v1.Post("/sites/:id/archive", timeout.NewWithContext(ArchiveSiteHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/stats", timeout.NewWithContext(SiteStatsHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/lines", timeout.NewWithContext(ListLinesHandler(deps), 15*time.Second))
	v1.Post("/sites/:id/lines", timeout.NewWithContext(UpsertLineHandler(deps), 15*time.Second))
	v1.Post("/sites/:id/lines/import", timeout.NewWithContext(ImportLinesHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/lines/nearby", timeout.NewWithContext(NearbyLinesHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/connect", timeout.NewWithContext(NearestMainHandler(deps), 15*time.Second))
	v1.Get("/lines/:id", timeout.NewWithContext(GetLineHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/alerts", timeout.NewWithContext(ActiveAlertsHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/alerts/history", timeout.NewWithContext(AlertHistoryHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/incidents", timeout.NewWithContext(ListIncidentsHandler(deps), 15*time.Second))
	v1.Post("/incidents/:id/close", timeout.NewWithContext(CloseIncidentHandler(deps), 15*time.Second))

	// Device pipeline: HTTP fallback for sample/command ingest plus live pose
	v1.Post("/sites/:id/devices/:device/samples", timeout.NewWithContext(IngestSampleHandler(deps), 15*time.Second))
	v1.Post("/sites/:id/devices/:device/commands", timeout.NewWithContext(DeviceCommandHandler(deps), 15*time.Second))
	v1.Get("/sites/:id/devices/:device/pose", timeout.NewWithContext(DevicePoseHandler(deps), 15*time.Second))

	// Deprecated one-shot proximity check
	v1.Get("/sites/:id/proximity", timeout.NewWithContext(LegacyProximityHandler(deps), 15*time.Second))

	// System stats
	v1.Get("/status", timeout.NewWithContext(SystemStatsHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
