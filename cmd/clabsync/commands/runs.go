package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clabsync/clabsync/pkg/stores"
)

func newRunsCommand() *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded sync runs",
		Long: `List the sync runs recorded in the history database, newest first.
With a run ID argument, show that run's steps instead.`,
		Example: `  # List recent runs
  clabsync runs

  # Show the steps of one run
  clabsync runs 9b1e6c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := stores.NewSQLiteStore(stores.Config{Path: state})
			if err != nil {
				return err
			}
			if err := store.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return printSteps(cmd, store, args[0])
			}
			return printRuns(cmd, store, limit)
		},
	}

	cmd.Flags().StringVar(&state, "state", "clabsync.db", "run history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func printRuns(cmd *cobra.Command, store *stores.SQLiteStore, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit, 0)
	if err != nil {
		return err
	}

	for _, run := range runs {
		completed := "-"
		if run.CompletedAt != nil {
			completed = run.CompletedAt.Sub(run.StartedAt).String()
		}
		fmt.Printf("%-36s  %-10s  %-20s  %-8s  %s\n",
			run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), completed, run.Topology)
	}
	return nil
}

func printSteps(cmd *cobra.Command, store *stores.SQLiteStore, runID string) error {
	steps, err := store.ListSteps(cmd.Context(), runID)
	if err != nil {
		return err
	}

	for _, step := range steps {
		line := fmt.Sprintf("%3d  %-10s  %-6s %-45s %s",
			step.Seq, step.Status, step.Method, step.Path, step.Display)
		if step.Error != nil {
			line += "  error: " + *step.Error
		}
		fmt.Println(line)
	}
	return nil
}
