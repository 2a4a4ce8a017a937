package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/marcohefti/agent-arena/internal/cases"
	"github.com/marcohefti/agent-arena/internal/config"
	"github.com/marcohefti/agent-arena/internal/report"
	"github.com/marcohefti/agent-arena/internal/sched"
	"github.com/marcohefti/agent-arena/internal/task"
)

// errTasksFailed signals an aggregate failure after every agent ran.
var errTasksFailed = errors.New("one or more agent tasks failed")

func newRunCmd() *cobra.Command {
	var (
		flagAgents []string
		flagTest   string
		flagInline string
		flagJobs   int
		flagMode   string
		flagDryRun bool
		flagStep   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every requested agent against the test inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagMode != "" && flagMode != config.ModeHeadless && flagMode != config.ModeInteractive {
				return fmt.Errorf("invalid --mode %q", flagMode)
			}

			ids := cfg.AgentIDs()
			if len(flagAgents) > 0 {
				ids = flagAgents
			}

			step := flagStep
			if step && !isatty.IsTerminal(os.Stdin.Fd()) {
				slog.Warn("step mode needs an interactive terminal, ignoring --step")
				step = false
			}

			jobs := flagJobs
			if jobs == 0 {
				jobs = cfg.Run.Jobs
			}

			tasks := make([]sched.Runnable, 0, len(ids))
			for _, id := range ids {
				agent, err := cfg.Agent(id)
				if err != nil {
					return err
				}
				run, err := cfg.Effective(id)
				if err != nil {
					return err
				}
				if flagMode != "" {
					run.Mode = flagMode
				}

				set, err := buildCases(run, flagTest, flagInline)
				if err != nil {
					return fmt.Errorf("agent %q: %w", id, err)
				}

				tasks = append(tasks, &task.Task{
					AgentID:   id,
					Agent:     agent,
					Run:       run,
					GlobalEnv: cfg.Env,
					Set:       set,
					DryRun:    flagDryRun,
					StepPause: step,
				})
			}

			runID := report.NewRunID()
			started := time.Now()
			slog.Info("run starting", "run", runID, "agents", strings.Join(ids, ","), "jobs", jobs, "dryRun", flagDryRun)

			v := sched.Run(cmd.Context(), tasks, jobs, progressLogger{})

			if !flagDryRun {
				summary := report.Build(runID, started, time.Now(), v.Outcomes)
				if path, err := report.Write(cfg.Run.OutputDir, summary); err != nil {
					slog.Error("summary write failed", "err", err)
				} else {
					slog.Info("summary written", "path", path)
				}
			}

			if v.Failed {
				return errTasksFailed
			}
			slog.Info("run succeeded", "run", runID)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&flagAgents, "agents", "a", nil, "agent subset (default: all configured)")
	cmd.Flags().StringVarP(&flagTest, "test", "t", "", "test file or directory (overrides run.test_dir)")
	cmd.Flags().StringVar(&flagInline, "inline", "", "inline test input instead of files")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "max concurrent agents (0 = all requested)")
	cmd.Flags().StringVarP(&flagMode, "mode", "m", "", "override run mode: headless|interactive")
	cmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "plan invocations without spawning anything")
	cmd.Flags().BoolVar(&flagStep, "step", false, "pause before each test case")
	return cmd
}

// buildCases resolves the test-input source for one agent: the --inline
// literal, else the --test path, else the agent's effective test_dir.
func buildCases(run config.Run, testFlag, inline string) (cases.Set, error) {
	if inline != "" {
		return cases.Inline("", inline), nil
	}
	target := testFlag
	if target == "" {
		target = run.TestDir
	}
	if strings.TrimSpace(target) == "" {
		return cases.Set{}, errors.New("no test input: set run.test_dir or pass --test/--inline")
	}
	return cases.Enumerate(target, run.Glob, run.Recursive)
}

type progressLogger struct{}

func (progressLogger) TaskStarted(id string) {
	slog.Info("agent task started", "agent", id)
}

func (progressLogger) TaskFinished(id string, out task.Outcome) {
	slog.Info("agent task finished", "agent", id, "failed", out.Failed, "cases", len(out.Cases))
}
