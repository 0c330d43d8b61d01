package engine

import (
	"context"
	"net/url"
	"time"

	"github.com/clabsync/clabsync/pkg/nautobot"
	"github.com/clabsync/clabsync/pkg/telemetry"
)

// Caller issues one inventory API call. *nautobot.Client satisfies it; tests
// substitute fakes.
type Caller interface {
	Call(ctx context.Context, method, path string, body any, query url.Values) (nautobot.Object, error)
}

// Synchronizer executes plans against an inventory. It owns ordering and
// binding propagation only: retries live in the client, and a failed run is
// rerun whole rather than rolled back.
type Synchronizer struct {
	client   Caller
	reporter Reporter
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

// NewSynchronizer creates a synchronizer. Only the client is required.
func NewSynchronizer(client Caller, reporter Reporter, logger *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Synchronizer {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Synchronizer{
		client:   client,
		reporter: reporter,
		logger:   logger.NewComponentLogger("engine"),
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Run executes every intent of the plan in order, binding returned
// identifiers as it goes. The first failure stops the run: the report holds
// every step executed up to and including the failed one, and the error is
// returned as classified by the client (or as a ContractError for wiring
// defects).
func (s *Synchronizer) Run(ctx context.Context, plan *Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     plan.ID,
		Topology:  plan.Topology,
		StartedAt: time.Now().UTC(),
	}

	ctx, runSpan := s.tracer.StartRunSpan(ctx, plan.ID, plan.Topology)
	defer runSpan.End()

	s.metrics.RecordRunStarted()
	s.logger.WithRunID(plan.ID).
		WithField("steps", len(plan.Intents)).
		Info("starting sync run")

	bindings := NewBindings()
	for i, intent := range plan.Intents {
		outcome, err := s.runStep(ctx, plan, bindings, i, intent)
		report.Steps = append(report.Steps, outcome)
		s.metrics.RecordStepExecution(string(intent.Kind), string(outcome.Status), outcome.Duration)

		if err != nil {
			report.Status = RunFailed
			report.CompletedAt = time.Now().UTC()
			report.Err = err
			telemetry.RecordError(runSpan, err)
			s.metrics.RecordRunCompleted(string(RunFailed), report.CompletedAt.Sub(report.StartedAt))
			s.logger.WithRunID(plan.ID).
				WithField("step", intent.ID).
				WithError(err).
				Error("sync run failed")
			return report, err
		}
	}

	report.Status = RunSucceeded
	report.CompletedAt = time.Now().UTC()
	telemetry.RecordSuccess(runSpan)
	s.metrics.RecordRunCompleted(string(RunSucceeded), report.CompletedAt.Sub(report.StartedAt))
	s.logger.WithRunID(plan.ID).
		WithField("steps", len(report.Steps)).
		Info("sync run completed")
	return report, nil
}

// runStep executes one intent and emits its event.
func (s *Synchronizer) runStep(ctx context.Context, plan *Plan, bindings *Bindings, i int, intent *Intent) (StepOutcome, error) {
	start := time.Now()
	outcome := StepOutcome{
		Seq:      i + 1,
		IntentID: intent.ID,
		Kind:     intent.Kind,
		Method:   intent.Method,
		Path:     intent.Path,
	}

	ctx, span := s.tracer.StartStepSpan(ctx, intent.ID, string(intent.Kind), intent.Method, intent.Path)
	defer span.End()

	fail := func(err error) (StepOutcome, error) {
		outcome.Status = StepFailed
		outcome.Duration = time.Since(start)
		outcome.Err = err
		telemetry.RecordError(span, err)
		s.reporter.Emit(Event{
			Type:     EventFailed,
			RunID:    plan.ID,
			Seq:      outcome.Seq,
			IntentID: intent.ID,
			Kind:     intent.Kind,
			Method:   intent.Method,
			Path:     outcome.Path,
			Duration: outcome.Duration,
			Err:      err,
		})
		return outcome, err
	}

	payload, err := intent.Payload(bindings)
	if err != nil {
		return fail(err)
	}

	path := intent.Path
	if intent.ResolvePath != nil {
		path, err = intent.ResolvePath(bindings)
		if err != nil {
			return fail(err)
		}
		outcome.Path = path
	}

	obj, err := s.client.Call(ctx, intent.Method, path, payload, nil)
	if err != nil {
		return fail(err)
	}

	if intent.BindAs != "" {
		if obj == nil {
			return fail(NewContractError("intent %s returned no object to bind as %q", intent.ID, intent.BindAs))
		}
		if err := bindings.Bind(intent.BindAs, Ref{ID: obj.ID(), Display: obj.Display()}); err != nil {
			return fail(err)
		}
	}

	outcome.Status = StepSucceeded
	outcome.Duration = time.Since(start)
	if obj != nil {
		outcome.Display = obj.Display()
	}

	eventType := EventCreated
	if intent.Method == "PATCH" || intent.Method == "PUT" {
		eventType = EventUpdated
	} else {
		s.metrics.RecordResourceCreated(string(intent.Kind))
	}

	telemetry.RecordSuccess(span)
	s.reporter.Emit(Event{
		Type:     eventType,
		RunID:    plan.ID,
		Seq:      outcome.Seq,
		IntentID: intent.ID,
		Kind:     intent.Kind,
		Method:   intent.Method,
		Path:     outcome.Path,
		Display:  outcome.Display,
		Duration: outcome.Duration,
	})

	return outcome, nil
}
