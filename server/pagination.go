package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kasuboski/animez/pkg/pagination"
)

// ParsePaginationParams reads ?page= and ?pageSize=. A missing pageSize returns every item.
func ParsePaginationParams(r *http.Request) (pagination.Params, error) {
	qp := r.URL.Query()

	page, err := queryInt(qp.Get("page"), 1, 1)
	if err != nil {
		return pagination.Params{}, fmt.Errorf("invalid page: %w", err)
	}
	size, err := queryInt(qp.Get("pageSize"), 0, 0)
	if err != nil {
		return pagination.Params{}, fmt.Errorf("invalid pageSize: %w", err)
	}

	return pagination.Params{Page: page, PageSize: size}, nil
}

func queryInt(raw string, def, floor int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < floor {
		return 0, fmt.Errorf("must be at least %d", floor)
	}
	return v, nil
}
