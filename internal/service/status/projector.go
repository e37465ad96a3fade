package status

import (
	"strings"

	"github.com/modelyard/platform/internal/domain"
)

// pipelineSteps is the fixed, ordered progress sequence shown to users.
var pipelineSteps = [4]domain.StepName{
	domain.StepInitializing,
	domain.StepUploading,
	domain.StepBuilding,
	domain.StepDeploying,
}

// stepRank orders the progressing lifecycle states. Terminal states (FAILED,
// SUSPENDED) and unknown values rank 0: they never retroactively complete or
// fail steps that the pipeline had already passed.
func stepRank(s domain.EndpointStatus) int {
	switch s {
	case domain.StatusUploading:
		return 1
	case domain.StatusBuilding:
		return 2
	case domain.StatusDeploying:
		return 3
	case domain.StatusDeployed:
		return 4
	}
	return 0
}

// currentStep maps the stored status to the headline step. Unknown values
// fall back to INITIALIZING; callers should log that case as enum drift.
func currentStep(s domain.EndpointStatus) domain.StepName {
	switch s {
	case domain.StatusUploading:
		return domain.StepUploading
	case domain.StatusBuilding:
		return domain.StepBuilding
	case domain.StatusDeploying:
		return domain.StepDeploying
	case domain.StatusDeployed:
		return domain.StepCompleted
	case domain.StatusFailed, domain.StatusSuspended:
		return domain.StepFailed
	}
	return domain.StepInitializing
}

// stepMessages holds the canned per-step strings keyed by derived state.
var stepMessages = map[domain.StepName]map[domain.StepStatus]string{
	domain.StepUploading: {
		domain.StepInProgress: "Uploading files...",
		domain.StepDone:       "Files uploaded",
		domain.StepPending:    "Waiting to upload",
	},
	domain.StepBuilding: {
		domain.StepInProgress: "Building Docker image...",
		domain.StepDone:       "Docker image built",
		domain.StepPending:    "Waiting to build",
	},
	domain.StepDeploying: {
		domain.StepInProgress: "Deploying to Cloud Run...",
		domain.StepDone:       "Deployed successfully",
		domain.StepPending:    "Waiting to deploy",
	},
}

// stepStatusFor derives one step's state from the stored status.
func stepStatusFor(step domain.StepName, status domain.EndpointStatus) domain.StepStatus {
	var rank int
	switch step {
	case domain.StepUploading:
		rank = 1
		if status == domain.StatusUploading {
			return domain.StepInProgress
		}
	case domain.StepBuilding:
		rank = 2
		if status == domain.StatusBuilding {
			return domain.StepInProgress
		}
	case domain.StepDeploying:
		rank = 3
		if status == domain.StatusDeploying {
			return domain.StepInProgress
		}
	}
	if stepRank(status) > rank {
		return domain.StepDone
	}
	return domain.StepPending
}

// Project derives the UI progress model from a stored endpoint. It is a pure,
// total function: unknown statuses produce an INITIALIZING headline with all
// pipeline steps pending.
func Project(e domain.Endpoint) domain.StatusProjection {
	steps := make([]domain.DeploymentStep, 0, len(pipelineSteps))
	steps = append(steps, domain.DeploymentStep{
		Step:      domain.StepInitializing,
		Status:    domain.StepDone,
		Message:   "Endpoint created",
		Timestamp: e.CreatedAt,
	})
	for _, step := range pipelineSteps[1:] {
		state := stepStatusFor(step, e.Status)
		ts := e.CreatedAt
		if step == domain.StepDeploying && e.DeployedAt != nil {
			ts = *e.DeployedAt
		}
		steps = append(steps, domain.DeploymentStep{
			Step:      step,
			Status:    state,
			Message:   stepMessages[step][state],
			Timestamp: ts,
		})
	}
	return domain.StatusProjection{
		ID:          e.ID,
		Name:        e.Name,
		CurrentStep: currentStep(e.Status),
		Steps:       steps,
		Logs:        TokenizeLogs(e.BuildLogs),
		Error:       e.ErrorMessage,
		ServiceURL:  e.ServiceURL,
		APIKey:      e.APIKey,
		Status:      e.Status,
		DeployedAt:  e.DeployedAt,
		CreatedAt:   e.CreatedAt,
	}
}

// TokenizeLogs splits a raw build log blob into display lines, dropping
// empty and whitespace-only lines while preserving order.
func TokenizeLogs(raw string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
