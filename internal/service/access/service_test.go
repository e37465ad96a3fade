package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeTeamRepo struct {
	team      domain.Team
	member    bool
	memberErr error
}

func (f fakeTeamRepo) CreateTeam(context.Context, *domain.Team) error         { return nil }
func (f fakeTeamRepo) UpsertMember(context.Context, *domain.TeamMember) error { return nil }
func (f fakeTeamRepo) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	if teamID != f.team.ID {
		return nil, repository.ErrNotFound
	}
	teamCopy := f.team
	return &teamCopy, nil
}
func (f fakeTeamRepo) GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	if slug != f.team.Slug {
		return nil, repository.ErrNotFound
	}
	teamCopy := f.team
	return &teamCopy, nil
}
func (f fakeTeamRepo) IsMember(context.Context, string, string) (bool, error) {
	return f.member, f.memberErr
}
func (f fakeTeamRepo) ListTeamsByUser(context.Context, string) ([]domain.Team, error) {
	return nil, nil
}
func (f fakeTeamRepo) CountProjects(context.Context, string) (int, error) { return 0, nil }

type fakeProjectRepo struct {
	project domain.Project
}

func (f fakeProjectRepo) CreateProject(context.Context, *domain.Project) error { return nil }
func (f fakeProjectRepo) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	if projectID != f.project.ID {
		return nil, repository.ErrNotFound
	}
	projectCopy := f.project
	return &projectCopy, nil
}
func (f fakeProjectRepo) GetProjectBySlug(ctx context.Context, teamID, slug string) (*domain.Project, error) {
	if teamID != f.project.TeamID || slug != f.project.Slug {
		return nil, repository.ErrNotFound
	}
	projectCopy := f.project
	return &projectCopy, nil
}
func (f fakeProjectRepo) ListProjectsByTeam(context.Context, string) ([]domain.Project, error) {
	return nil, nil
}

type fakeEndpointRepo struct {
	endpoint domain.Endpoint
}

func (f fakeEndpointRepo) CreateEndpoint(context.Context, *domain.Endpoint) error { return nil }
func (f fakeEndpointRepo) GetEndpointByID(ctx context.Context, endpointID string) (*domain.Endpoint, error) {
	if endpointID != f.endpoint.ID {
		return nil, repository.ErrNotFound
	}
	endpointCopy := f.endpoint
	return &endpointCopy, nil
}
func (f fakeEndpointRepo) GetEndpointBySlug(ctx context.Context, projectID, slug string) (*domain.Endpoint, error) {
	if projectID != f.endpoint.ProjectID || slug != f.endpoint.Slug {
		return nil, repository.ErrNotFound
	}
	endpointCopy := f.endpoint
	return &endpointCopy, nil
}
func (f fakeEndpointRepo) ListEndpointsByProject(context.Context, string) ([]domain.Endpoint, error) {
	return nil, nil
}
func (f fakeEndpointRepo) UpdateEndpointStatus(context.Context, domain.EndpointStatusUpdate) error {
	return nil
}

func newTestService(member bool) Service {
	return New(
		fakeTeamRepo{team: domain.Team{ID: "team-1", Slug: "acme"}, member: member},
		fakeProjectRepo{project: domain.Project{ID: "proj-1", TeamID: "team-1", Slug: "nlp"}},
		fakeEndpointRepo{endpoint: domain.Endpoint{ID: "ep-1", ProjectID: "proj-1", Slug: "sentiment"}},
		testLogger(),
	)
}

func TestResolveEndpointHappyPath(t *testing.T) {
	svc := newTestService(true)

	ep, err := svc.ResolveEndpoint(context.Background(), "user-1", "acme", "nlp", "sentiment")
	if err != nil {
		t.Fatalf("ResolveEndpoint returned error: %v", err)
	}
	if ep.ID != "ep-1" {
		t.Fatalf("expected ep-1, got %s", ep.ID)
	}
}

func TestResolveEndpointCollapsesAllMisses(t *testing.T) {
	memberSvc := newTestService(true)
	outsiderSvc := newTestService(false)

	cases := []struct {
		name string
		call func() error
	}{
		{"missing team", func() error {
			_, err := memberSvc.ResolveEndpoint(context.Background(), "user-1", "ghost", "nlp", "sentiment")
			return err
		}},
		{"missing project", func() error {
			_, err := memberSvc.ResolveEndpoint(context.Background(), "user-1", "acme", "ghost", "sentiment")
			return err
		}},
		{"missing endpoint", func() error {
			_, err := memberSvc.ResolveEndpoint(context.Background(), "user-1", "acme", "nlp", "ghost")
			return err
		}},
		{"not a member", func() error {
			_, err := outsiderSvc.ResolveEndpoint(context.Background(), "outsider", "acme", "nlp", "sentiment")
			return err
		}},
	}
	var messages []string
	for _, tc := range cases {
		err := tc.call()
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", tc.name, err)
		}
		messages = append(messages, err.Error())
	}
	for _, msg := range messages[1:] {
		if msg != messages[0] {
			t.Fatalf("failure modes must be indistinguishable: %q vs %q", messages[0], msg)
		}
	}
}

func TestAuthorizeEndpointChecksMembership(t *testing.T) {
	svc := newTestService(false)

	_, err := svc.AuthorizeEndpoint(context.Background(), "outsider", "ep-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-member, got %v", err)
	}
}

func TestAuthorizeEndpointHappyPath(t *testing.T) {
	svc := newTestService(true)

	ep, err := svc.AuthorizeEndpoint(context.Background(), "user-1", "ep-1")
	if err != nil {
		t.Fatalf("AuthorizeEndpoint returned error: %v", err)
	}
	if ep.ID != "ep-1" {
		t.Fatalf("expected ep-1, got %s", ep.ID)
	}
}

func TestAuthorizeEndpointSurfacesInfraErrors(t *testing.T) {
	infraErr := errors.New("connection reset")
	svc := New(
		fakeTeamRepo{team: domain.Team{ID: "team-1", Slug: "acme"}, memberErr: infraErr},
		fakeProjectRepo{project: domain.Project{ID: "proj-1", TeamID: "team-1", Slug: "nlp"}},
		fakeEndpointRepo{endpoint: domain.Endpoint{ID: "ep-1", ProjectID: "proj-1", Slug: "sentiment"}},
		testLogger(),
	)

	_, err := svc.AuthorizeEndpoint(context.Background(), "user-1", "ep-1")
	if !errors.Is(err, infraErr) {
		t.Fatalf("infrastructure errors must not be collapsed, got %v", err)
	}
}

func TestAuthorizeProjectAndTeam(t *testing.T) {
	svc := newTestService(true)

	if _, err := svc.AuthorizeProject(context.Background(), "user-1", "proj-1"); err != nil {
		t.Fatalf("AuthorizeProject returned error: %v", err)
	}
	if _, err := svc.AuthorizeTeam(context.Background(), "user-1", "team-1"); err != nil {
		t.Fatalf("AuthorizeTeam returned error: %v", err)
	}
	if _, err := svc.AuthorizeProject(context.Background(), "user-1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing project, got %v", err)
	}
}
