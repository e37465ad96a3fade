package domain

import "time"

// StepName identifies one user-visible phase of the deploy pipeline.
type StepName string

const (
	StepInitializing StepName = "INITIALIZING"
	StepUploading    StepName = "UPLOADING"
	StepBuilding     StepName = "BUILDING"
	StepDeploying    StepName = "DEPLOYING"

	// CurrentStep-only values for terminal states.
	StepCompleted StepName = "COMPLETED"
	StepFailed    StepName = "FAILED"
)

// StepStatus is the derived per-step state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "completed"
)

// DeploymentStep is one entry of the projected progress sequence.
type DeploymentStep struct {
	Step      StepName   `json:"step"`
	Status    StepStatus `json:"status"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// StatusProjection is the UI-consumable view of an endpoint's deployment
// progress. It is derived fresh from the stored endpoint on every call and
// never persisted.
type StatusProjection struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	CurrentStep StepName         `json:"current_step"`
	Steps       []DeploymentStep `json:"steps"`
	Logs        []string         `json:"logs"`
	Error       string           `json:"error,omitempty"`
	ServiceURL  string           `json:"service_url,omitempty"`
	APIKey      string           `json:"api_key"`
	Status      EndpointStatus   `json:"status"`
	DeployedAt  *time.Time       `json:"deployed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
