package engine

import (
	"time"

	"github.com/clabsync/clabsync/pkg/telemetry"
)

// EventType classifies step events.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventFailed  EventType = "failed"
)

// Event is one observable step outcome. Exactly one event is emitted per
// executed step.
type Event struct {
	Type     EventType
	RunID    string
	Seq      int
	IntentID string
	Kind     ResourceKind
	Method   string
	Path     string
	Display  string
	Duration time.Duration
	Err      error
}

// Reporter receives step events as they happen.
type Reporter interface {
	Emit(Event)
}

// FuncReporter adapts a function to the Reporter interface.
type FuncReporter func(Event)

// Emit implements Reporter.
func (f FuncReporter) Emit(e Event) { f(e) }

// NopReporter discards all events.
type NopReporter struct{}

// Emit implements Reporter.
func (NopReporter) Emit(Event) {}

// LogReporter writes step events to a structured logger, mirroring the
// one-line-per-resource progress output of the sync command.
type LogReporter struct {
	logger *telemetry.Logger
}

// NewLogReporter creates a reporter that logs each event.
func NewLogReporter(logger *telemetry.Logger) *LogReporter {
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &LogReporter{logger: logger.NewComponentLogger("sync")}
}

// Emit implements Reporter.
func (r *LogReporter) Emit(e Event) {
	l := r.logger.
		WithField("seq", e.Seq).
		WithField("kind", string(e.Kind)).
		WithField("path", e.Path)
	switch e.Type {
	case EventFailed:
		l.WithError(e.Err).Errorf("%s failed", e.Kind)
	case EventUpdated:
		l.Infof("Updated %s: %s", e.Kind, e.Display)
	default:
		l.Infof("Created %s: %s", e.Kind, e.Display)
	}
}

// StepStatus is the terminal state of one executed step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

// StepOutcome records one executed step for the run report.
type StepOutcome struct {
	Seq      int
	IntentID string
	Kind     ResourceKind
	Method   string
	Path     string
	Status   StepStatus
	Display  string
	Duration time.Duration
	Err      error
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Report is the complete record of one run: every executed step in order,
// plus the run's terminal status. Steps after a failure never execute and
// never appear.
type Report struct {
	RunID       string
	Topology    string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Steps       []StepOutcome
	Err         error
}

// Succeeded reports whether the run completed every step.
func (r *Report) Succeeded() bool {
	return r.Status == RunSucceeded
}
