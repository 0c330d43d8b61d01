package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clabsync",
		Short: "clabsync - containerlab to Nautobot inventory sync",
		Long: `clabsync mirrors a containerlab topology into a Nautobot inventory.

It reads the lab's topology file plus an optional extra-vars overrides file,
plans the full set of inventory resources (roles, device types, locations,
prefixes, devices, interfaces, addresses), and creates them over the Nautobot
REST API in dependency order. Each device is finished by promoting its
management address to primary.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file with NAUTOBOT_URL / NAUTOBOT_TOKEN")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}
