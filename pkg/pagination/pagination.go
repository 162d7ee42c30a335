package pagination

import (
	"net/url"
	"strconv"
)

// Defaults applied by FromQuery.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the number of records to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pages returns how many pages total records span.
func (p Params) Pages(total int) int {
	return Pages(total, p.PerPage)
}

// FromQuery reads page and per_page (or its alias limit) from q. Missing,
// malformed or non-positive values fall back to the defaults; per_page is
// capped at MaxPerPage.
func FromQuery(q url.Values) Params {
	p := Params{Page: DefaultPage, PerPage: DefaultPerPage}

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}

	raw := q.Get("per_page")
	if raw == "" {
		raw = q.Get("limit")
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		p.PerPage = min(v, MaxPerPage)
	}
	return p
}

// Pages returns ceil(total/perPage), or 0 when perPage is not positive.
func Pages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
