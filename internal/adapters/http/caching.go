package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.Contains(path, "/alerts") || strings.Contains(path, "/pose"):
			ttl = "no-store" // Live proximity state must never be cached

		case strings.Contains(path, "/lines/nearby") || strings.Contains(path, "/connect"):
			ttl = "public, max-age=60" // Spatial lookups over slow-moving line data

		case strings.Contains(path, "/incidents"):
			ttl = "no-cache" // Incident state changes as crews respond

		case strings.Contains(path, "/lines"):
			ttl = "public, max-age=300" // Line geometry changes only on re-import

		case strings.HasPrefix(path, "/v1/sites"):
			ttl = "public, max-age=120" // Site metadata is fairly stable

		case path == "/v1/status":
			ttl = "public, max-age=60" // Row-count stats: 1 min

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60" // Conservative default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
