package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcohefti/agent-arena/internal/config"
)

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List configured agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			for _, id := range cfg.AgentIDs() {
				run, err := cfg.Effective(id)
				if err != nil {
					return err
				}
				a := cfg.Agents[id]
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tmode=%s\tcommand=%s\n", id, run.Mode, a.Command)
			}
			return nil
		},
	}
}
