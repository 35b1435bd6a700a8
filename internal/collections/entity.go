package collections

import "time"

// Entity carries the fields every collection record shares. Concrete record
// types embed it.
type Entity struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
}

// DefaultSearchFields are the fields a free-text search matches against when
// the caller does not configure its own set.
var DefaultSearchFields = []string{"title", "description"}
