// Package cli wires the arena commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

// NewRootCmd builds the arena command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "arena",
		Short:         "Drive multiple agent CLIs against a shared set of test inputs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "agents.toml", "agents config file (.toml, .yaml or .yml)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newAgentsCmd())
	root.AddCommand(newDoneCmd())
	root.AddCommand(newDoctorCmd())
	return root
}

// Execute runs the CLI and maps the outcome to a process exit code.
func Execute(version string) int {
	root := NewRootCmd(version)
	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		return 1
	}
	return 0
}
