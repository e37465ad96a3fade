package domain

import "time"

// Team represents a collaborative group owning projects and endpoints.
type Team struct {
	ID           string
	Slug         string
	Name         string
	OwnerID      string
	MaxProjects  int
	MaxEndpoints int
	CreatedAt    time.Time
}

// TeamMember links a user to a team with a role.
type TeamMember struct {
	TeamID    string
	UserID    string
	Role      string
	CreatedAt time.Time
}
