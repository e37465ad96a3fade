package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
	"github.com/modelyard/platform/internal/ws"
	"github.com/modelyard/platform/pkg/crypto"
)

// CreateInput encapsulates endpoint registration attributes.
type CreateInput struct {
	ProjectID   string `json:"project_id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	ArtifactURI string `json:"artifact_uri"`
}

// CallbackPayload carries a status transition reported by the deploy
// pipeline. LogLines are appended to the endpoint's build log and streamed
// to connected dashboard clients.
type CallbackPayload struct {
	EndpointID string    `json:"endpoint_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error"`
	ServiceURL string    `json:"service_url"`
	LogLines   []string  `json:"log_lines"`
	Timestamp  time.Time `json:"timestamp"`
}

// Service manages endpoint records and ingests pipeline progress.
type Service struct {
	endpoints repository.EndpointRepository
	projects  repository.ProjectRepository
	hub       *ws.Hub
	logger    *slog.Logger
}

// New returns an endpoint service.
func New(endpoints repository.EndpointRepository, projects repository.ProjectRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{endpoints: endpoints, projects: projects, hub: hub, logger: logger}
}

var (
	errInvalidEndpointName = errors.New("endpoint name is required")
	errMissingProjectID    = errors.New("project id required")
	errMissingEndpointID   = errors.New("endpoint_id required")
)

// Create registers a new endpoint in the UPLOADING state with a fresh API
// key. The deploy pipeline picks the record up from there.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Endpoint, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errInvalidEndpointName
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, errMissingProjectID
	}
	slug, err := domain.NormalizeSlug(input.Slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProjectByID(ctx, input.ProjectID); err != nil {
		return nil, err
	}
	apiKey, err := crypto.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	endpoint := &domain.Endpoint{
		ID:          uuid.NewString(),
		ProjectID:   input.ProjectID,
		Slug:        slug,
		Name:        input.Name,
		Status:      domain.StatusUploading,
		APIKey:      apiKey,
		ArtifactURI: input.ArtifactURI,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.endpoints.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, err
	}
	s.logger.Info("endpoint registered", "endpoint_id", endpoint.ID, "project_id", endpoint.ProjectID)
	return endpoint, nil
}

// Hub exposes the log broadcast hub for websocket subscriptions.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// Get fetches an endpoint record.
func (s Service) Get(ctx context.Context, endpointID string) (*domain.Endpoint, error) {
	return s.endpoints.GetEndpointByID(ctx, endpointID)
}

// ListByProject returns endpoints belonging to a project.
func (s Service) ListByProject(ctx context.Context, projectID string) ([]domain.Endpoint, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errMissingProjectID
	}
	return s.endpoints.ListEndpointsByProject(ctx, projectID)
}

// ProcessCallback persists a pipeline status transition and broadcasts any
// new build log lines. Unknown status values are stored as-is but logged:
// the projector tolerates them, and hiding the drift would mask pipeline
// bugs.
func (s Service) ProcessCallback(ctx context.Context, payload CallbackPayload) error {
	if strings.TrimSpace(payload.EndpointID) == "" {
		return errMissingEndpointID
	}
	status := domain.EndpointStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if status == "" {
		return errors.New("status required")
	}
	if !status.Known() {
		s.logger.Warn("pipeline reported unrecognized status",
			"endpoint_id", payload.EndpointID, "status", string(status))
	}

	now := payload.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}
	update := domain.EndpointStatusUpdate{
		EndpointID:   payload.EndpointID,
		Status:       status,
		ErrorMessage: payload.Error,
		ServiceURL:   payload.ServiceURL,
		UpdatedAt:    now,
	}
	if len(payload.LogLines) > 0 {
		update.BuildLogChunk = strings.Join(payload.LogLines, "\n") + "\n"
	}
	if status == domain.StatusDeployed {
		deployedAt := now
		update.DeployedAt = &deployedAt
	}
	if err := s.endpoints.UpdateEndpointStatus(ctx, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		s.logger.Error("endpoint status update failed", "endpoint_id", payload.EndpointID, "error", err)
		return err
	}
	s.logger.Info("deployment progress", "endpoint_id", payload.EndpointID, "status", string(status))
	s.broadcastLogs(payload)
	return nil
}

func (s Service) broadcastLogs(payload CallbackPayload) {
	if s.hub == nil || len(payload.LogLines) == 0 {
		return
	}
	message, err := json.Marshal(map[string]any{
		"endpoint_id": payload.EndpointID,
		"status":      payload.Status,
		"lines":       payload.LogLines,
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(payload.EndpointID, message)
}
