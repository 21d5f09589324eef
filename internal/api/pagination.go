package api

import (
	"net/http"
	"strconv"
)

// paginationMeta holds pagination metadata for API responses.
type paginationMeta struct {
	Limit  uint64 `json:"limit"`
	Offset uint64 `json:"offset"`
}

// parsePaginationParams parses ?offset=20&limit=10. Missing or out of range
// values fall back to the defaults.
func parsePaginationParams(r *http.Request, defaultLimit, maxLimit uint64) paginationMeta {
	query := r.URL.Query()

	limit, err := strconv.ParseUint(query.Get("limit"), 10, 64)
	if err != nil || limit == 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset, err := strconv.ParseUint(query.Get("offset"), 10, 64)
	if err != nil {
		offset = 0
	}

	return paginationMeta{Limit: limit, Offset: offset}
}
