package tags

import "time"

// Tag is an enumerated label that may be attached to a time entry. Only
// active tags are accepted at validation time; matching is case sensitive.
type Tag struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
}
