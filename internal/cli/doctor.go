package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcohefti/agent-arena/internal/config"
	"github.com/marcohefti/agent-arena/internal/fifo"
	"github.com/marcohefti/agent-arena/internal/session"
)

// doctor checks the environment an interactive run depends on before any
// agent is spawned.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, tmux and the completion-channel directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false

			check := func(name string, err error) {
				if err != nil {
					failed = true
					fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "ok   %s\n", name)
			}

			cfg, err := config.Load(flagConfig)
			check("config "+flagConfig, err)

			if session.Installed() {
				check("tmux", nil)
			} else {
				check("tmux", fmt.Errorf("not found in PATH (required for interactive mode)"))
			}

			fifoDir := config.DefaultRun().FifoDir
			if cfg != nil {
				fifoDir = cfg.Run.FifoDir
			}
			probe := fifo.ForAgent(fifoDir, "doctor-probe")
			if err := probe.Ensure(); err != nil {
				check("fifo dir "+fifoDir, err)
			} else {
				check("fifo dir "+fifoDir, nil)
				_ = os.Remove(probe.Path)
				_ = os.Remove(filepath.Clean(probe.FallbackPath))
			}

			if failed {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
}
