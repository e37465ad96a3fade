package metrics

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/service/access"
)

// Failure modes of the metrics pipeline. The HTTP layer maps each to a
// distinct, human-readable envelope message.
var (
	// ErrNotDeployed: the endpoint has no service URL or has not reached
	// the terminal success state yet.
	ErrNotDeployed = errors.New("endpoint is not deployed")
	// ErrServiceName: the deployment URL does not match the expected
	// naming convention.
	ErrServiceName = errors.New("could not extract service name")
	// ErrUpstream: the monitoring backend call failed or timed out.
	ErrUpstream = errors.New("metrics backend unavailable")
)

const defaultQueryTimeout = 15 * time.Second

// EndpointMetrics is the merged per-signal response for one endpoint.
type EndpointMetrics struct {
	EndpointName string           `json:"endpoint_name"`
	ServiceName  string           `json:"service_name"`
	Metrics      SignalSummaries  `json:"metrics"`
	TimeRange    domain.TimeRange `json:"time_range"`
}

// SignalSummaries holds one TrendSummary per tracked signal.
type SignalSummaries struct {
	Requests domain.TrendSummary `json:"requests"`
	Latency  domain.TrendSummary `json:"latency"`
}

// Service runs the endpoint metrics pipeline: access gate, readiness check,
// service name resolution, backend queries, aggregation.
type Service struct {
	access       access.Service
	source       Source
	logger       *slog.Logger
	queryTimeout time.Duration
	maxHoursBack int
	now          func() time.Time
}

// New returns a metrics service. A nil source is tolerated and reported as
// an upstream failure at query time so the API can run without a monitoring
// backend configured.
func New(accessSvc access.Service, source Source, logger *slog.Logger, queryTimeout time.Duration, maxHoursBack int) Service {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return Service{
		access:       accessSvc,
		source:       source,
		logger:       logger,
		queryTimeout: queryTimeout,
		maxHoursBack: maxHoursBack,
		now:          time.Now,
	}
}

// EndpointMetrics resolves the endpoint, verifies it is ready, and returns
// windowed trend summaries for every tracked signal. The monitoring backend
// is never contacted for endpoints that are not deployed.
func (s Service) EndpointMetrics(ctx context.Context, userID, teamSlug, projectSlug, endpointSlug string, hoursBack int) (*EndpointMetrics, error) {
	endpoint, err := s.access.ResolveEndpoint(ctx, userID, teamSlug, projectSlug, endpointSlug)
	if err != nil {
		return nil, err
	}
	if endpoint.ServiceURL == "" || endpoint.Status != domain.StatusDeployed {
		return nil, ErrNotDeployed
	}
	serviceName, ok := ResolveServiceName(endpoint.ServiceURL)
	if !ok {
		s.logger.Warn("service url does not match naming convention",
			"endpoint_id", endpoint.ID, "service_url", endpoint.ServiceURL)
		return nil, ErrServiceName
	}

	window := domain.NewTimeRange(s.now().UTC(), hoursBack, s.maxHoursBack)

	requestPoints, err := s.query(ctx, serviceName, SignalRequests, window)
	if err != nil {
		return nil, err
	}
	latencyPoints, err := s.query(ctx, serviceName, SignalLatency, window)
	if err != nil {
		return nil, err
	}

	return &EndpointMetrics{
		EndpointName: endpoint.Name,
		ServiceName:  serviceName,
		Metrics: SignalSummaries{
			Requests: Summarize(requestPoints, Sum),
			Latency:  Summarize(latencyPoints, Mean),
		},
		TimeRange: window,
	}, nil
}

func (s Service) query(ctx context.Context, serviceName string, signal Signal, window domain.TimeRange) ([]domain.MetricPoint, error) {
	if s.source == nil {
		return nil, ErrUpstream
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	points, err := s.source.Query(queryCtx, serviceName, signal, window)
	if err != nil {
		s.logger.Error("metrics backend query failed",
			"service_name", serviceName, "signal", string(signal), "error", err)
		return nil, ErrUpstream
	}
	return points, nil
}
