package http

import (
	"fmt"
	"net/url"
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

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses. Filter
// parameters of the current request (commune, parcel_id) are carried over;
// offset and limit are rewritten per relation.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	filters := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		switch key := string(k); key {
		case "offset", "limit":
		default:
			filters.Add(key, string(v))
		}
	})
	prefix := ""
	if len(filters) > 0 {
		prefix = filters.Encode() + "&"
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?%soffset=%d&limit=%d>; rel="%s"`, base, prefix, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}

	// last page starts on a limit boundary
	last := 0
	if p.Total > 0 && p.Limit > 0 {
		last = (p.Total - 1) / p.Limit * p.Limit
	}
	links = append(links, link(last, "last"))

	c.Set("Link", strings.Join(links, ", "))
}
