package status

import (
	"context"

	"log/slog"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/service/access"
)

// Service serves deployment status projections.
type Service struct {
	access access.Service
	logger *slog.Logger
}

// New returns a status service.
func New(accessSvc access.Service, logger *slog.Logger) Service {
	return Service{access: accessSvc, logger: logger}
}

// Projection returns the progress view for an endpoint the caller may see.
// Unknown stored statuses are projected anyway (the view stays total) but
// logged, since they indicate enum drift in the pipeline.
func (s Service) Projection(ctx context.Context, userID, endpointID string) (*domain.StatusProjection, error) {
	endpoint, err := s.access.AuthorizeEndpoint(ctx, userID, endpointID)
	if err != nil {
		return nil, err
	}
	if !endpoint.Status.Known() {
		s.logger.Warn("endpoint has unrecognized status", "endpoint_id", endpoint.ID, "status", string(endpoint.Status))
	}
	projection := Project(*endpoint)
	return &projection, nil
}
