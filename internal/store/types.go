package store

import "time"

// ActivityFilter narrows ListActivities. Results are newest first.
type ActivityFilter struct {
	Tool   string
	Title  string
	Since  *time.Time
	Limit  int
	Offset int
}
