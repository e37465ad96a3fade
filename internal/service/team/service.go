package team

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
)

// Limits captures configurable resource quotas.
type Limits struct {
	MaxProjects  int `json:"max_projects"`
	MaxEndpoints int `json:"max_endpoints"`
}

// Service handles team workflows.
type Service struct {
	repo   repository.TeamRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(repo repository.TeamRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger}
}

var errInvalidTeamName = errors.New("team name is required")

// Create registers a team; the owner becomes its first member.
func (s Service) Create(ctx context.Context, ownerID, name, slug string, limits Limits) (*domain.Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errInvalidTeamName
	}
	normalized, err := domain.NormalizeSlug(slug)
	if err != nil {
		return nil, err
	}
	if limits.MaxProjects == 0 {
		limits.MaxProjects = 5
	}
	if limits.MaxEndpoints == 0 {
		limits.MaxEndpoints = 10
	}
	team := &domain.Team{
		ID:           uuid.NewString(),
		Slug:         normalized,
		Name:         name,
		OwnerID:      ownerID,
		MaxProjects:  limits.MaxProjects,
		MaxEndpoints: limits.MaxEndpoints,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	member := &domain.TeamMember{
		TeamID:    team.ID,
		UserID:    ownerID,
		Role:      "owner",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertMember(ctx, member); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team_id", team.ID, "slug", team.Slug, "owner_id", ownerID)
	return team, nil
}

// ListByUser returns teams the user belongs to.
func (s Service) ListByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	return s.repo.ListTeamsByUser(ctx, userID)
}

// UpsertMember adds or updates membership.
func (s Service) UpsertMember(ctx context.Context, teamID, userID, role string) error {
	member := &domain.TeamMember{
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	return s.repo.UpsertMember(ctx, member)
}

// EnsureProjectQuota verifies team capacity before adding a new project.
func (s Service) EnsureProjectQuota(ctx context.Context, teamID string) error {
	count, err := s.repo.CountProjects(ctx, teamID)
	if err != nil {
		return err
	}
	team, err := s.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if count >= team.MaxProjects {
		return errors.New("team project quota exceeded")
	}
	return nil
}
