package access

import (
	"context"
	"errors"

	"log/slog"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
)

// ErrNotFound is returned for missing resources AND missing membership.
// Collapsing the two keeps resource existence hidden from outsiders.
var ErrNotFound = errors.New("endpoint not found or no access")

// Service gates endpoint access on team membership.
type Service struct {
	teams     repository.TeamRepository
	projects  repository.ProjectRepository
	endpoints repository.EndpointRepository
	logger    *slog.Logger
}

// New returns an access service.
func New(teams repository.TeamRepository, projects repository.ProjectRepository, endpoints repository.EndpointRepository, logger *slog.Logger) Service {
	return Service{teams: teams, projects: projects, endpoints: endpoints, logger: logger}
}

// ResolveEndpoint walks team → project → endpoint by slug, verifying the
// caller's membership along the way. Every failure mode except an
// infrastructure error surfaces as ErrNotFound.
func (s Service) ResolveEndpoint(ctx context.Context, userID, teamSlug, projectSlug, endpointSlug string) (*domain.Endpoint, error) {
	team, err := s.teams.GetTeamBySlug(ctx, teamSlug)
	if err != nil {
		return nil, s.collapse(err)
	}
	member, err := s.teams.IsMember(ctx, team.ID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotFound
	}
	project, err := s.projects.GetProjectBySlug(ctx, team.ID, projectSlug)
	if err != nil {
		return nil, s.collapse(err)
	}
	endpoint, err := s.endpoints.GetEndpointBySlug(ctx, project.ID, endpointSlug)
	if err != nil {
		return nil, s.collapse(err)
	}
	return endpoint, nil
}

// AuthorizeTeam verifies the caller is a member of the team.
func (s Service) AuthorizeTeam(ctx context.Context, userID, teamID string) (*domain.Team, error) {
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, s.collapse(err)
	}
	member, err := s.teams.IsMember(ctx, team.ID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotFound
	}
	return team, nil
}

// AuthorizeProject loads a project and verifies membership in its team.
func (s Service) AuthorizeProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, s.collapse(err)
	}
	member, err := s.teams.IsMember(ctx, project.TeamID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotFound
	}
	return project, nil
}

// AuthorizeEndpoint loads an endpoint by ID and verifies the caller belongs
// to the owning team, with the same existence-hiding collapse.
func (s Service) AuthorizeEndpoint(ctx context.Context, userID, endpointID string) (*domain.Endpoint, error) {
	endpoint, err := s.endpoints.GetEndpointByID(ctx, endpointID)
	if err != nil {
		return nil, s.collapse(err)
	}
	project, err := s.projects.GetProjectByID(ctx, endpoint.ProjectID)
	if err != nil {
		return nil, s.collapse(err)
	}
	member, err := s.teams.IsMember(ctx, project.TeamID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotFound
	}
	return endpoint, nil
}

func (s Service) collapse(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
