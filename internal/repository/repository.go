package repository

import (
	"context"

	"github.com/modelyard/platform/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// TeamRepository manages teams and memberships.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	UpsertMember(ctx context.Context, member *domain.TeamMember) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error)
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
	ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error)
	CountProjects(ctx context.Context, teamID string) (int, error)
}

// ProjectRepository persists project configuration.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, teamID, slug string) (*domain.Project, error)
	ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error)
}

// EndpointRepository persists endpoint records and their pipeline status.
type EndpointRepository interface {
	CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error
	GetEndpointByID(ctx context.Context, endpointID string) (*domain.Endpoint, error)
	GetEndpointBySlug(ctx context.Context, projectID, slug string) (*domain.Endpoint, error)
	ListEndpointsByProject(ctx context.Context, projectID string) ([]domain.Endpoint, error)
	UpdateEndpointStatus(ctx context.Context, update domain.EndpointStatusUpdate) error
}
