package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// parsePagination reads ?page and ?limit with 1-based pages, defaulting to
// page 1 / limit 20, and returns the resulting limit and offset.
func parsePagination(r *http.Request, maxLimit int) (limit, offset int64, err error) {
	page := int64(1)
	limit = 20

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 1 || limit > int64(maxLimit) {
			return 0, 0, fmt.Errorf("invalid pagination limit")
		}
	}

	return limit, (page - 1) * limit, nil
}
