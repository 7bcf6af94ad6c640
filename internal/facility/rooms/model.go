package rooms

import (
	"time"

	"github.com/medisys/hms/internal/shared"
)

// Kinds of room a facility can register.
const (
	KindWard      = "ward"
	KindICU       = "icu"
	KindTheatre   = "theatre"
	KindClinic    = "clinic"
	KindIsolation = "isolation"
)

// Room is a physical room in the hospital.
type Room struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Floor     int       `json:"floor"`
	Capacity  int       `json:"capacity"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters narrows room listings.
type ListFilters struct {
	// Window limits the page returned; a zero PerPage returns every row.
	Window  shared.PageRequest
	Search  string
	Kind    string
	Floor   *int
	SortBy  string
	SortDir string
}
