package domain

import "time"

// Project groups model endpoints under a team.
type Project struct {
	ID          string
	TeamID      string
	Slug        string
	Name        string
	Description string
	CreatedAt   time.Time
}
