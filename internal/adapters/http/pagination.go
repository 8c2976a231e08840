package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses.
// Non-pagination query parameters (filters like kind=) are carried into
// the generated links so clients can walk pages without re-applying them.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	extra := filterQuery(c)
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?%soffset=%d&limit=%d>; rel="%s"`, base, extra, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}

	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, link(prev, "prev"))
	}

	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}

	lastOffset := p.Total - p.Limit
	if lastOffset < 0 {
		lastOffset = 0
	}
	links = append(links, link(lastOffset, "last"))

	c.Set("Link", strings.Join(links, ", "))
}

// filterQuery rebuilds the query string without offset/limit, with a
// trailing & so it can prefix the pagination parameters directly.
func filterQuery(c *fiber.Ctx) string {
	var sb strings.Builder
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		if k == "offset" || k == "limit" {
			return
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.Write(value)
		sb.WriteByte('&')
	})
	return sb.String()
}
