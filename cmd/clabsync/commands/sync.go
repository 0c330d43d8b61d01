package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clabsync/clabsync/pkg/engine"
	"github.com/clabsync/clabsync/pkg/nautobot"
	"github.com/clabsync/clabsync/pkg/stores"
	"github.com/clabsync/clabsync/pkg/telemetry"
)

// syncFlags bundles everything a sync run needs; watch reuses it.
type syncFlags struct {
	inputs inputFlags
	conn   connFlags

	state         string
	metricsListen string
	traceExporter string
	traceEndpoint string
	dryRun        bool
}

func (f *syncFlags) register(cmd *cobra.Command) {
	f.inputs.register(cmd)
	f.conn.register(cmd)
	cmd.Flags().StringVar(&f.state, "state", "clabsync.db", "run history database path (empty to disable)")
	cmd.Flags().StringVar(&f.metricsListen, "metrics-listen", "", "expose Prometheus metrics on this address")
	cmd.Flags().StringVar(&f.traceExporter, "trace-exporter", "none", "trace exporter (otlp, stdout, none)")
	cmd.Flags().StringVar(&f.traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")
}

func newSyncCommand() *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync a topology into Nautobot",
		Long: `Plan the full resource set for a topology and create it in Nautobot,
in dependency order, one API call per resource. Each device is finished by
promoting its management address to primary.

The run stops at the first failure. A resource that already exists is a
failure: clear the lab data from Nautobot before rerunning. Run history is
recorded in a local SQLite database unless --state is empty.`,
		Example: `  # Sync a lab with overrides
  clabsync sync --topology lab.clab.yml --extra-vars extra.yml

  # Show the calls without making them
  clabsync sync --topology lab.clab.yml --dry-run

  # Expose Prometheus metrics during the run
  clabsync sync --topology lab.clab.yml --metrics-listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), &flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the plan without calling Nautobot")
	return cmd
}

// runSync executes one full sync run.
func runSync(ctx context.Context, flags *syncFlags) error {
	plan, err := flags.inputs.buildPlan()
	if err != nil {
		return err
	}

	if flags.dryRun {
		for _, step := range plan.Steps() {
			fmt.Printf("%3d  %-6s %-45s %s\n", step.Seq, step.Method, step.Path, step.ID)
		}
		return nil
	}

	cfg, err := flags.conn.clientConfig()
	if err != nil {
		return err
	}

	logger := telemetry.FromZerolog(log.Logger)

	var metrics *telemetry.Metrics
	if flags.metricsListen != "" {
		mcfg := telemetry.DefaultConfig().Metrics
		mcfg.Enabled = true
		mcfg.ListenAddress = flags.metricsListen
		metrics, err = telemetry.NewMetrics(mcfg)
		if err != nil {
			return fmt.Errorf("failed to set up metrics: %w", err)
		}
		if err := metrics.StartMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	var tracer *telemetry.Tracer
	if flags.traceExporter != "" && flags.traceExporter != "none" {
		tcfg := telemetry.DefaultConfig().Tracing
		tcfg.Enabled = true
		tcfg.Exporter = flags.traceExporter
		tcfg.Endpoint = flags.traceEndpoint
		tracer, err = telemetry.NewTracer(tcfg, "clabsync", "dev", "lab")
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() { _ = tracer.Shutdown(context.Background()) }()
	}

	client, err := nautobot.NewClient(cfg, logger, metrics)
	if err != nil {
		return err
	}

	var store *stores.SQLiteStore
	if flags.state != "" {
		store, err = stores.NewSQLiteStore(stores.Config{Path: flags.state})
		if err != nil {
			return err
		}
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer func() { _ = store.Close() }()
	}

	s := engine.NewSynchronizer(client, engine.NewLogReporter(logger), logger, metrics, tracer)
	report, runErr := s.Run(ctx, plan)
	if report == nil {
		return runErr
	}

	if store != nil {
		if err := recordRun(ctx, store, report); err != nil {
			log.Warn().Err(err).Msg("Failed to record run history")
		}
	}

	if runErr != nil {
		return fmt.Errorf("sync failed after %d of %d steps: %w",
			len(report.Steps), len(plan.Intents), runErr)
	}

	fmt.Printf("Synced topology %q: %d resources in %s\n",
		report.Topology, len(report.Steps), report.CompletedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}

// recordRun persists a completed run report to the history store.
func recordRun(ctx context.Context, store *stores.SQLiteStore, report *engine.Report) error {
	run := &stores.Run{
		ID:        report.RunID,
		Topology:  report.Topology,
		Status:    stores.RunStatusRunning,
		StartedAt: report.StartedAt,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return err
	}

	for _, step := range report.Steps {
		rec := &stores.Step{
			RunID:      report.RunID,
			Seq:        step.Seq,
			Kind:       string(step.Kind),
			Name:       step.IntentID,
			Method:     step.Method,
			Path:       step.Path,
			Status:     stores.StepStatus(step.Status),
			Display:    step.Display,
			DurationMS: step.Duration.Milliseconds(),
		}
		if step.Err != nil {
			msg := step.Err.Error()
			rec.Error = &msg
		}
		if err := store.AppendStep(ctx, rec); err != nil {
			return err
		}
	}

	status := stores.RunStatusSucceeded
	var errMsg *string
	if report.Err != nil {
		status = stores.RunStatusFailed
		msg := report.Err.Error()
		errMsg = &msg
	}
	return store.FinishRun(ctx, report.RunID, status, report.CompletedAt, errMsg)
}
