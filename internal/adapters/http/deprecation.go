package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with sunset date.
type DeprecatedRoute struct {
	Path        string    // Handler path pattern
	SunsetDate  time.Time // Date when endpoint will be removed
	Alternative string    // Recommended alternative endpoint (optional)
}

// DeprecationMiddleware adds Deprecation, Sunset, and Link headers to deprecated endpoints.
// This helps clients migrate gracefully to newer API versions.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Check if this route is deprecated
		for _, d := range deprecated {
			if matchPattern(c.Path(), d.Path) {
				// RFC 8594 Deprecation header
				c.Set("Deprecation", "true")

				// RFC 8594 Sunset header (HTTP-Date format)
				c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))

				// RFC 8288 Link header with deprecation info
				if d.Alternative != "" {
					c.Set("Link", fmt.Sprintf(`<%s>; rel="successor-version"`, d.Alternative))
				}

				// Warning header (optional, RFC 7234)
				days := time.Until(d.SunsetDate).Hours() / 24
				c.Set("Warning", fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))

				break
			}
		}

		return c.Next()
	}
}

// matchPattern matches a concrete request path against a route pattern
// segment by segment, where :name segments match any non-empty value
// (e.g. "/v1/sites/:id/proximity" matches "/v1/sites/abc-123/proximity").
func matchPattern(path, pattern string) bool {
	if path == pattern {
		return true
	}

	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(pathParts) != len(patternParts) {
		return false
	}

	for i, pp := range patternParts {
		if strings.HasPrefix(pp, ":") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if pp != pathParts[i] {
			return false
		}
	}
	return true
}
