package handler

import (
	"net/http"
	"strconv"

	"github.com/aithera/therapy-server-go/internal/config"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset from the query string. Missing or
// malformed values fall back to defaults; oversized limits are clamped.
func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	switch {
	case limit <= 0:
		limit = config.UserPageDefault
	case limit > config.UserPageMax:
		limit = config.UserPageMax
	}

	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}
