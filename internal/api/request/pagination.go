package request

import (
	"net/http"
	"strconv"
)

// Pagination is the parsed limit/cursor pair for list endpoints. Cursor is
// the ID of the last item from the previous page.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination reads limit and cursor query parameters. Invalid or
// non-positive limits fall back to DefaultLimit; oversized ones clamp to
// MaxLimit.
func ParsePagination(r *http.Request) Pagination {
	p := Pagination{
		Limit:  DefaultLimit,
		Cursor: r.URL.Query().Get("cursor"),
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			p.Limit = limit
		}
	}

	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	return p
}
