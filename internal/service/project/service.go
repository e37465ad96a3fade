package project

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
	"github.com/modelyard/platform/internal/service/team"
)

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	TeamID      string `json:"team_id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service orchestrates project management.
type Service struct {
	projects repository.ProjectRepository
	teams    team.Service
	logger   *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, teams team.Service, logger *slog.Logger) Service {
	return Service{projects: projects, teams: teams, logger: logger}
}

var (
	errInvalidProjectName = errors.New("project name is required")
	errMissingTeamID      = errors.New("team id required")
)

// Create registers a new project respecting team quotas.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errInvalidProjectName
	}
	if strings.TrimSpace(input.TeamID) == "" {
		return nil, errMissingTeamID
	}
	slug, err := domain.NormalizeSlug(input.Slug)
	if err != nil {
		return nil, err
	}
	if err := s.teams.EnsureProjectQuota(ctx, input.TeamID); err != nil {
		return nil, err
	}
	project := &domain.Project{
		ID:          uuid.NewString(),
		TeamID:      input.TeamID,
		Slug:        slug,
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "team_id", project.TeamID)
	return project, nil
}

// ListByTeam returns projects owned by the team.
func (s Service) ListByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, errMissingTeamID
	}
	return s.projects.ListProjectsByTeam(ctx, teamID)
}
