// Package pagination implements offset/limit windowing for query results.
package pagination

import (
	"github.com/trailofbits/slither-mcp/internal/errors"
)

// Request carries the pagination parameters of a query. A zero Limit means
// no limit.
type Request struct {
	Offset int `json:"offset,omitempty"`
	Limit  int `json:"limit,omitempty"`
}

// Page describes the window that was returned
type Page struct {
	Offset  int  `json:"offset"`
	Total   int  `json:"total_count"`
	HasMore bool `json:"has_more"`
}

// Validate rejects negative parameters before any work happens
func (r Request) Validate() error {
	if r.Offset < 0 {
		return errors.Newf(errors.InvalidArgument, "offset must be >= 0, got %d", r.Offset)
	}
	if r.Limit < 0 {
		return errors.Newf(errors.InvalidArgument, "limit must be >= 0, got %d", r.Limit)
	}
	return nil
}

// Apply windows items by offset and limit. An offset past the end yields an
// empty page, not an error, so clients can probe freely.
func Apply[T any](items []T, r Request) ([]T, Page) {
	total := len(items)

	if r.Offset >= total {
		return []T{}, Page{Offset: r.Offset, Total: total}
	}
	items = items[r.Offset:]
	if r.Limit > 0 && r.Limit < len(items) {
		items = items[:r.Limit]
	}

	return items, Page{
		Offset:  r.Offset,
		Total:   total,
		HasMore: r.Offset+len(items) < total,
	}
}
