package shared

import (
	"net/url"
	"strconv"
)

// Listing defaults applied to every paginated collection.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: (total + perPage - 1) / perPage}
}

// PageRequest is the page window a client asked for.
type PageRequest struct {
	Page    int
	PerPage int
}

// ParsePageRequest reads page and limit from q. Missing, malformed or out of
// range values fall back to the first page of DefaultPerPage rows.
func ParsePageRequest(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("limit"))
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset is the number of rows preceding the page.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Result builds the response metadata once the total row count is known.
func (p PageRequest) Result(total int) Pagination {
	return NewPagination(p.Page, p.PerPage, total)
}
