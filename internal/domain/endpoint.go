package domain

import "time"

// EndpointStatus is the coarse lifecycle state stored for an endpoint.
// Transitions are owned by the external deploy pipeline; this service only
// observes them.
type EndpointStatus string

const (
	StatusUploading EndpointStatus = "UPLOADING"
	StatusBuilding  EndpointStatus = "BUILDING"
	StatusDeploying EndpointStatus = "DEPLOYING"
	StatusDeployed  EndpointStatus = "DEPLOYED"
	StatusFailed    EndpointStatus = "FAILED"
	StatusSuspended EndpointStatus = "SUSPENDED"
)

// Known reports whether the status is part of the closed lifecycle set.
// Anything else indicates schema drift in the pipeline.
func (s EndpointStatus) Known() bool {
	switch s {
	case StatusUploading, StatusBuilding, StatusDeploying, StatusDeployed, StatusFailed, StatusSuspended:
		return true
	}
	return false
}

// Endpoint is a deployed AI model instance exposed over HTTP.
type Endpoint struct {
	ID           string
	ProjectID    string
	Slug         string
	Name         string
	Status       EndpointStatus
	ErrorMessage string
	BuildLogs    string
	ServiceURL   string
	APIKey       string
	ArtifactURI  string
	DeployedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EndpointStatusUpdate captures a status transition reported by the deploy
// pipeline. Empty fields leave the stored value unchanged; BuildLogChunk is
// appended to the existing log blob.
type EndpointStatusUpdate struct {
	EndpointID    string
	Status        EndpointStatus
	ErrorMessage  string
	ServiceURL    string
	BuildLogChunk string
	DeployedAt    *time.Time
	UpdatedAt     time.Time
}
