package stores

import "time"

// RunStatus represents the lifecycle state of a recorded run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded sync run.
type Run struct {
	// ID is the run identifier, shared with the engine's plan ID.
	ID string

	// Topology is the lab name from the topology document.
	Topology string

	// Status is the run's current lifecycle state.
	Status RunStatus

	// StartedAt and CompletedAt bound the run's execution window.
	// CompletedAt is nil while the run is in flight.
	StartedAt   time.Time
	CompletedAt *time.Time

	// Error holds the failure message for failed runs.
	Error *string
}

// StepStatus represents the terminal state of a recorded step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// Step is one recorded plan step of a run.
type Step struct {
	// RunID ties the step to its run.
	RunID string

	// Seq is the step's 1-based position in the plan.
	Seq int

	// Kind is the resource kind the step created or updated.
	Kind string

	// Name is the intent identifier within the plan.
	Name string

	// Method and Path are the API call issued.
	Method string
	Path   string

	// Status is the step's terminal state.
	Status StepStatus

	// Display is the created resource's display string.
	Display string

	// DurationMS is the step's wall-clock duration in milliseconds.
	DurationMS int64

	// Error holds the failure message for failed steps.
	Error *string
}
