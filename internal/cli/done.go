package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/marcohefti/agent-arena/internal/fifo"
)

// `arena done` is the writing side of the completion protocol: an agent hook
// that can exec a binary calls it instead of hand-rolling the fifo write.
func newDoneCmd() *cobra.Command {
	var (
		flagAgent   string
		flagCase    string
		flagFifoDir string
	)

	cmd := &cobra.Command{
		Use:   "done",
		Short: "Signal completion of one interactive test case",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagAgent == "" || flagCase == "" {
				return errors.New("done: --agent and --case are required")
			}
			ch := fifo.ForAgent(flagFifoDir, flagAgent)
			return ch.WriteLine(fifo.DoneLine(flagCase))
		},
	}

	cmd.Flags().StringVar(&flagAgent, "agent", "", "agent identifier (required)")
	cmd.Flags().StringVar(&flagCase, "case", "", "case identifier (required)")
	cmd.Flags().StringVar(&flagFifoDir, "fifo-dir", "/tmp/agent-done", "completion channel directory")
	return cmd
}
