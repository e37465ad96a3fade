package status

import (
	"reflect"
	"testing"
	"time"

	"github.com/modelyard/platform/internal/domain"
)

var fixedCreated = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func baseEndpoint(status domain.EndpointStatus) domain.Endpoint {
	return domain.Endpoint{
		ID:        "ep-1",
		Name:      "sentiment-model",
		Status:    status,
		CreatedAt: fixedCreated,
	}
}

func stepNames(steps []domain.DeploymentStep) []domain.StepName {
	names := make([]domain.StepName, len(steps))
	for i, s := range steps {
		names[i] = s.Step
	}
	return names
}

func TestProjectAlwaysEmitsFourOrderedSteps(t *testing.T) {
	statuses := []domain.EndpointStatus{
		domain.StatusUploading,
		domain.StatusBuilding,
		domain.StatusDeploying,
		domain.StatusDeployed,
		domain.StatusFailed,
		domain.StatusSuspended,
		domain.EndpointStatus("SOMETHING_NEW"),
	}
	want := []domain.StepName{
		domain.StepInitializing,
		domain.StepUploading,
		domain.StepBuilding,
		domain.StepDeploying,
	}
	for _, status := range statuses {
		projection := Project(baseEndpoint(status))
		if got := stepNames(projection.Steps); !reflect.DeepEqual(got, want) {
			t.Fatalf("status %s: step order %v, want %v", status, got, want)
		}
		if projection.Steps[0].Status != domain.StepDone {
			t.Fatalf("status %s: INITIALIZING should always be completed", status)
		}
		if projection.Steps[0].Message != "Endpoint created" {
			t.Fatalf("status %s: unexpected first step message %q", status, projection.Steps[0].Message)
		}
	}
}

func TestProjectBuildingMarksEarlierStepsDone(t *testing.T) {
	projection := Project(baseEndpoint(domain.StatusBuilding))

	if projection.CurrentStep != domain.StepBuilding {
		t.Fatalf("expected current step BUILDING, got %s", projection.CurrentStep)
	}
	if projection.Steps[1].Status != domain.StepDone {
		t.Fatalf("expected UPLOADING completed, got %s", projection.Steps[1].Status)
	}
	if projection.Steps[1].Message != "Files uploaded" {
		t.Fatalf("unexpected uploading message %q", projection.Steps[1].Message)
	}
	if projection.Steps[2].Status != domain.StepInProgress {
		t.Fatalf("expected BUILDING in progress, got %s", projection.Steps[2].Status)
	}
	if projection.Steps[2].Message != "Building Docker image..." {
		t.Fatalf("unexpected building message %q", projection.Steps[2].Message)
	}
	if projection.Steps[3].Status != domain.StepPending {
		t.Fatalf("expected DEPLOYING pending, got %s", projection.Steps[3].Status)
	}
}

func TestProjectDeployedCompletesEverything(t *testing.T) {
	deployedAt := fixedCreated.Add(5 * time.Minute)
	ep := baseEndpoint(domain.StatusDeployed)
	ep.DeployedAt = &deployedAt
	ep.ServiceURL = "https://sentiment-model-abc123-uc.a.run.app"

	projection := Project(ep)

	if projection.CurrentStep != domain.StepCompleted {
		t.Fatalf("expected current step COMPLETED, got %s", projection.CurrentStep)
	}
	for _, step := range projection.Steps {
		if step.Status != domain.StepDone {
			t.Fatalf("step %s not completed for deployed endpoint: %s", step.Step, step.Status)
		}
	}
	if projection.Steps[3].Message != "Deployed successfully" {
		t.Fatalf("unexpected deploy message %q", projection.Steps[3].Message)
	}
	if !projection.Steps[3].Timestamp.Equal(deployedAt) {
		t.Fatalf("deploy step should carry the deployment time, got %v", projection.Steps[3].Timestamp)
	}
}

func TestProjectFailedLeavesStepsPending(t *testing.T) {
	ep := baseEndpoint(domain.StatusFailed)
	ep.ErrorMessage = "build exited with code 1"

	projection := Project(ep)

	if projection.CurrentStep != domain.StepFailed {
		t.Fatalf("expected current step FAILED, got %s", projection.CurrentStep)
	}
	for _, step := range projection.Steps[1:] {
		if step.Status != domain.StepPending {
			t.Fatalf("step %s should stay pending after failure, got %s", step.Step, step.Status)
		}
	}
	if projection.Error != "build exited with code 1" {
		t.Fatalf("expected error message to pass through, got %q", projection.Error)
	}
}

func TestProjectSuspendedMirrorsFailed(t *testing.T) {
	projection := Project(baseEndpoint(domain.StatusSuspended))

	if projection.CurrentStep != domain.StepFailed {
		t.Fatalf("expected current step FAILED, got %s", projection.CurrentStep)
	}
	for _, step := range projection.Steps[1:] {
		if step.Status != domain.StepPending {
			t.Fatalf("step %s should stay pending when suspended, got %s", step.Step, step.Status)
		}
	}
}

func TestProjectUnknownStatusFallsBackToInitializing(t *testing.T) {
	projection := Project(baseEndpoint(domain.EndpointStatus("ROLLED_BACK")))

	if projection.CurrentStep != domain.StepInitializing {
		t.Fatalf("expected INITIALIZING fallback, got %s", projection.CurrentStep)
	}
	for _, step := range projection.Steps[1:] {
		if step.Status != domain.StepPending {
			t.Fatalf("step %s should be pending for unknown status, got %s", step.Step, step.Status)
		}
	}
}

func TestTokenizeLogsDropsBlankLines(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", []string{}},
		{"\n\n  \n", []string{}},
		{"step 1 ok\n\nstep 2 ok\n", []string{"step 1 ok", "step 2 ok"}},
		{"single", []string{"single"}},
	}
	for _, tc := range cases {
		if got := TokenizeLogs(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("TokenizeLogs(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
