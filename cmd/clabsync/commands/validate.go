package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var inputs inputFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate topology and overrides files",
		Long: `Parse and merge the topology and overrides files, then check that the
result can be planned: every node ends up with a kind and a management
address, interfaces carry names and addresses, prefixes are valid CIDRs.

No Nautobot connection is made.`,
		Example: `  # Validate a topology alone
  clabsync validate --topology lab.clab.yml

  # Validate with overrides
  clabsync validate --topology lab.clab.yml --extra-vars extra.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := inputs.buildPlan()
			if err != nil {
				return err
			}

			log.Info().
				Int("steps", len(plan.Intents)).
				Str("topology", plan.Topology).
				Msg("Topology is valid")
			fmt.Printf("OK: %d resources planned for topology %q\n", len(plan.Intents), plan.Topology)
			return nil
		},
	}

	inputs.register(cmd)
	return cmd
}
