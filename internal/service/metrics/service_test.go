package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
	"github.com/modelyard/platform/internal/service/access"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fixtures struct {
	team     domain.Team
	project  domain.Project
	endpoint domain.Endpoint
}

func deployedFixtures() fixtures {
	deployedAt := fixedNow.Add(-2 * time.Hour)
	return fixtures{
		team:    domain.Team{ID: "team-1", Slug: "acme"},
		project: domain.Project{ID: "proj-1", TeamID: "team-1", Slug: "nlp"},
		endpoint: domain.Endpoint{
			ID:         "ep-1",
			ProjectID:  "proj-1",
			Slug:       "sentiment",
			Name:       "Sentiment",
			Status:     domain.StatusDeployed,
			ServiceURL: "https://sentiment-abc123-uc.a.run.app",
			DeployedAt: &deployedAt,
		},
	}
}

type fakeTeamRepo struct {
	team   domain.Team
	member bool
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
	return f.member, nil
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

type fakeSource struct {
	calls    int
	signals  []Signal
	windows  []domain.TimeRange
	requests []domain.MetricPoint
	latency  []domain.MetricPoint
	err      error
}

func (f *fakeSource) Query(ctx context.Context, serviceName string, signal Signal, window domain.TimeRange) ([]domain.MetricPoint, error) {
	f.calls++
	f.signals = append(f.signals, signal)
	f.windows = append(f.windows, window)
	if f.err != nil {
		return nil, f.err
	}
	if signal == SignalLatency {
		return f.latency, nil
	}
	return f.requests, nil
}

func newTestService(fx fixtures, member bool, source Source) Service {
	accessSvc := access.New(
		fakeTeamRepo{team: fx.team, member: member},
		fakeProjectRepo{project: fx.project},
		fakeEndpointRepo{endpoint: fx.endpoint},
		testLogger(),
	)
	svc := New(accessSvc, source, testLogger(), time.Second, 720)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestEndpointMetricsNeverQueriesUndeployedEndpoints(t *testing.T) {
	fx := deployedFixtures()
	fx.endpoint.Status = domain.StatusBuilding
	source := &fakeSource{}
	svc := newTestService(fx, true, source)

	_, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 0)

	if !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed, got %v", err)
	}
	if source.calls != 0 {
		t.Fatalf("monitoring backend must not be queried, got %d calls", source.calls)
	}
}

func TestEndpointMetricsRequiresServiceURL(t *testing.T) {
	fx := deployedFixtures()
	fx.endpoint.ServiceURL = ""
	source := &fakeSource{}
	svc := newTestService(fx, true, source)

	_, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 0)

	if !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed, got %v", err)
	}
	if source.calls != 0 {
		t.Fatalf("monitoring backend must not be queried, got %d calls", source.calls)
	}
}

func TestEndpointMetricsHidesExistenceFromNonMembers(t *testing.T) {
	fx := deployedFixtures()
	svc := newTestService(fx, false, &fakeSource{})

	_, memberErr := svc.EndpointMetrics(context.Background(), "outsider", "acme", "nlp", "sentiment", 0)
	_, missingErr := svc.EndpointMetrics(context.Background(), "outsider", "acme", "nlp", "no-such-endpoint", 0)

	if !errors.Is(memberErr, access.ErrNotFound) {
		t.Fatalf("expected access.ErrNotFound for non-member, got %v", memberErr)
	}
	if !errors.Is(missingErr, access.ErrNotFound) {
		t.Fatalf("expected access.ErrNotFound for missing endpoint, got %v", missingErr)
	}
	if memberErr.Error() != missingErr.Error() {
		t.Fatalf("no-access and missing must be indistinguishable: %q vs %q", memberErr, missingErr)
	}
}

func TestEndpointMetricsRejectsUnknownURLShape(t *testing.T) {
	fx := deployedFixtures()
	fx.endpoint.ServiceURL = "https://sentiment.example.com"
	source := &fakeSource{}
	svc := newTestService(fx, true, source)

	_, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 0)

	if !errors.Is(err, ErrServiceName) {
		t.Fatalf("expected ErrServiceName, got %v", err)
	}
	if source.calls != 0 {
		t.Fatalf("monitoring backend must not be queried, got %d calls", source.calls)
	}
}

func TestEndpointMetricsWrapsBackendFailures(t *testing.T) {
	fx := deployedFixtures()
	source := &fakeSource{err: errors.New("rpc unavailable")}
	svc := newTestService(fx, true, source)

	_, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 0)

	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestEndpointMetricsWithoutConfiguredSource(t *testing.T) {
	fx := deployedFixtures()
	svc := newTestService(fx, true, nil)

	_, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 0)

	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream for nil source, got %v", err)
	}
}

func TestEndpointMetricsSummarizesBothSignals(t *testing.T) {
	fx := deployedFixtures()
	source := &fakeSource{
		requests: pointsOf(10, 10, 20, 20),
		latency:  pointsOf(200, 200, 100, 100),
	}
	svc := newTestService(fx, true, source)

	result, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 48)
	if err != nil {
		t.Fatalf("EndpointMetrics returned error: %v", err)
	}

	if result.ServiceName != "sentiment" {
		t.Fatalf("expected service name sentiment, got %q", result.ServiceName)
	}
	if result.EndpointName != "Sentiment" {
		t.Fatalf("expected endpoint name Sentiment, got %q", result.EndpointName)
	}
	if source.calls != 2 {
		t.Fatalf("expected one query per signal, got %d", source.calls)
	}
	if result.Metrics.Requests.Total != 60 {
		t.Fatalf("expected request total 60, got %v", result.Metrics.Requests.Total)
	}
	if result.Metrics.Requests.TrendPercentage != 100 {
		t.Fatalf("expected +100%% request trend, got %v", result.Metrics.Requests.TrendPercentage)
	}
	if result.Metrics.Latency.TrendPercentage != -50 {
		t.Fatalf("expected -50%% latency trend, got %v", result.Metrics.Latency.TrendPercentage)
	}
	if result.TimeRange.HoursBack != 48 {
		t.Fatalf("expected 48h window, got %d", result.TimeRange.HoursBack)
	}
	if !result.TimeRange.End.Equal(fixedNow) {
		t.Fatalf("window should end at the fixed clock, got %v", result.TimeRange.End)
	}
}

func TestEndpointMetricsClampsWindow(t *testing.T) {
	fx := deployedFixtures()
	source := &fakeSource{requests: pointsOf(1), latency: pointsOf(1)}
	svc := newTestService(fx, true, source)

	result, err := svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 10000)
	if err != nil {
		t.Fatalf("EndpointMetrics returned error: %v", err)
	}
	if result.TimeRange.HoursBack != 720 {
		t.Fatalf("expected clamp to 720h, got %d", result.TimeRange.HoursBack)
	}

	result, err = svc.EndpointMetrics(context.Background(), "user-1", "acme", "nlp", "sentiment", 0)
	if err != nil {
		t.Fatalf("EndpointMetrics returned error: %v", err)
	}
	if result.TimeRange.HoursBack != domain.DefaultHoursBack {
		t.Fatalf("expected default window, got %d", result.TimeRange.HoursBack)
	}
}
