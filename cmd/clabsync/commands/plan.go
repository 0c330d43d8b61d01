package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var (
		inputs inputFlags
		dot    bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resource plan for a topology",
		Long: `Build the ordered resource plan for a topology without touching Nautobot.

The default output is one line per planned API call, in execution order.
With --dot the dependency graph is emitted in Graphviz DOT format instead.`,
		Example: `  # List the planned API calls
  clabsync plan --topology lab.clab.yml --extra-vars extra.yml

  # Render the dependency graph
  clabsync plan --topology lab.clab.yml --dot | dot -Tsvg > plan.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := inputs.buildPlan()
			if err != nil {
				return err
			}

			if dot {
				out, err := plan.ToDOT()
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}

			for _, step := range plan.Steps() {
				fmt.Printf("%3d  %-6s %-45s %s\n", step.Seq, step.Method, step.Path, step.ID)
			}
			return nil
		},
	}

	inputs.register(cmd)
	cmd.Flags().BoolVar(&dot, "dot", false, "emit the dependency graph in DOT format")
	return cmd
}
