package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

// NewPagination computes pagination metadata for a limit/offset listing.
func NewPagination(limit, offset, total int) Pagination {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Limit: limit, Offset: offset, Total: total, Pages: pages}
}
