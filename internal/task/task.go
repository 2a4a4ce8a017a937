// Package task runs one agent end-to-end: resolve its environment once, run
// its one-time initialization, then execute every test case serially in the
// configured mode. Tasks are the unit the scheduler runs in parallel; all
// state here is task-local so concurrent siblings cannot interfere.
package task

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcohefti/agent-arena/internal/cases"
	"github.com/marcohefti/agent-arena/internal/config"
	"github.com/marcohefti/agent-arena/internal/envmap"
	"github.com/marcohefti/agent-arena/internal/execrun"
	"github.com/marcohefti/agent-arena/internal/fifo"
	"github.com/marcohefti/agent-arena/internal/session"
)

// Step kinds in a task plan.
const (
	StepInit = "init"
	StepCase = "case"
)

// Step is one planned invocation. Dry-run prints the plan; a real run
// executes exactly the same sequence.
type Step struct {
	Kind    string
	CaseID  string
	Argv    []string // headless and init invocations
	Command string   // interactive session command line
	LogPath string
	Case    cases.Case
}

// Describe renders the step for dry-run output and logs.
func (s Step) Describe() string {
	if s.Command != "" {
		return fmt.Sprintf("session{%s} -> %s", s.Command, s.LogPath)
	}
	return fmt.Sprintf("%s -> %s", strings.Join(s.Argv, " "), s.LogPath)
}

// CaseResult is one test file's recorded outcome. Entries accumulate as
// executions finish and are never revised.
type CaseResult struct {
	CaseID   string
	ExitCode int
	TimedOut bool
	LogPath  string
	Duration time.Duration
}

// Outcome aggregates one agent task: non-zero anywhere wins.
type Outcome struct {
	AgentID  string
	InitExit int
	Cases    []CaseResult
	Failed   bool
}

// Task is the serial unit of work for one agent.
type Task struct {
	AgentID   string
	Agent     config.Agent
	Run       config.Run
	GlobalEnv map[string]string
	Set       cases.Set

	DryRun    bool
	StepPause bool
	StepIn    io.Reader
	StepOut   io.Writer

	Log    *slog.Logger
	Lookup envmap.Lookup // test seam; nil means the process environment
}

// ID names the task after its agent; the scheduler keys progress on it.
func (t *Task) ID() string {
	return t.AgentID
}

// OutDir is the agent's log directory under the run output root.
func (t *Task) OutDir() string {
	return filepath.Join(t.Run.OutputDir, t.Agent.OutputName(t.AgentID))
}

// ResolveEnv produces the concrete environment exported to this agent's
// processes: global defaults under per-agent overrides, env: indirection
// resolved, plus the MODEL override, the trajectory directory contract
// variable, and (interactively) the completion-channel directory. Pure with
// respect to the process environment.
func (t *Task) ResolveEnv() map[string]string {
	env := envmap.Resolve(t.GlobalEnv, t.Agent.Env, t.Lookup)
	if strings.TrimSpace(t.Agent.Model) != "" {
		env["MODEL"] = t.Agent.Model
	}

	trajVar := strings.TrimSpace(t.Agent.TrajEnv)
	if trajVar == "" {
		trajVar = envmap.VarName(t.AgentID, "_TRAJ_DIR")
	}
	trajDir := filepath.Join(t.OutDir(), "traj")
	if abs, err := filepath.Abs(trajDir); err == nil {
		trajDir = abs
	}
	env[trajVar] = trajDir

	if t.Run.Mode == config.ModeInteractive {
		env["FIFO_DIR"] = t.Run.FifoDir
	}
	return env
}

// Plan computes the full invocation sequence for this task against an
// already-resolved environment. Argument templates and the init command get
// their ${VAR} placeholders expanded here.
func (t *Task) Plan(env map[string]string) []Step {
	outDir := t.OutDir()
	var steps []Step

	if strings.TrimSpace(t.Agent.Init) != "" {
		initCmd := envmap.Expand(t.Agent.Init, env, t.Lookup)
		steps = append(steps, Step{
			Kind:    StepInit,
			Argv:    []string{"sh", "-c", initCmd},
			LogPath: filepath.Join(outDir, "init.log"),
		})
	}

	command := envmap.Expand(t.Agent.Command, env, t.Lookup)
	argsStr := envmap.Expand(t.Agent.Args, env, t.Lookup)
	argv := append([]string{command}, strings.Fields(argsStr)...)
	sessionCmd := strings.TrimSpace(command + " " + argsStr)

	for _, c := range t.Set.Cases {
		st := Step{
			Kind:    StepCase,
			CaseID:  c.ID,
			LogPath: filepath.Join(outDir, c.LogName),
			Case:    c,
		}
		if t.Run.Mode == config.ModeInteractive {
			st.Command = sessionCmd
		} else {
			st.Argv = argv
		}
		steps = append(steps, st)
	}
	return steps
}

// Execute runs the task to completion. Initialization failure aborts this
// task only; case failures abort the remaining sequence only for
// single-target sources. Dry-run logs the identical plan without spawning a
// process or writing a log file.
func (t *Task) Execute(ctx context.Context) Outcome {
	log := t.logger().With("agent", t.AgentID)
	out := Outcome{AgentID: t.AgentID}

	env := t.ResolveEnv()
	steps := t.Plan(env)

	if t.DryRun {
		for _, st := range steps {
			log.Info("planned invocation", "step", st.Kind, "case", st.CaseID, "invocation", st.Describe())
		}
		return out
	}

	if err := os.MkdirAll(filepath.Join(t.OutDir(), "traj"), 0o755); err != nil {
		log.Error("output dir", "err", err)
		out.Failed = true
		return out
	}
	exported := envmap.ExportList(os.Environ(), env)

	var ctrl *session.Controller
	if t.Run.Mode == config.ModeInteractive {
		ctrl = &session.Controller{
			Session:       session.Session{Name: sessionName(t.AgentID)},
			Channel:       fifo.ForAgent(t.Run.FifoDir, t.AgentID),
			Dir:           "",
			Env:           env,
			ExitCommand:   t.Agent.Exit(),
			Settle:        time.Duration(t.Run.SettleDelay) * time.Second,
			SignalTimeout: time.Duration(t.Run.SignalTimeout) * time.Second,
			Log:           log,
		}
		if err := ctrl.Channel.Ensure(); err != nil {
			log.Error("completion channel", "err", err)
			out.Failed = true
			return out
		}
		defer func() { _ = ctrl.Close() }()
	}

	ranCase := false
	for _, st := range steps {
		if st.Kind == StepInit {
			res, err := execrun.Run(ctx, execrun.Invocation{
				Argv:     st.Argv,
				Env:      exported,
				InputVia: config.InputViaStdin,
				LogPath:  st.LogPath,
				Timeout:  time.Duration(t.Run.InitTimeout) * time.Second,
			})
			out.InitExit = res.ExitCode
			if err != nil || res.ExitCode != 0 {
				log.Error("initialization failed", "exit", res.ExitCode, "timeout", res.TimedOut, "log", st.LogPath, "err", err)
				out.Failed = true
				return out
			}
			log.Info("initialization done", "log", st.LogPath)
			continue
		}

		if ranCase && t.Run.Delay > 0 {
			sleepCtx(ctx, time.Duration(t.Run.Delay)*time.Second)
		}
		ranCase = true

		if t.StepPause {
			t.pause(st.CaseID)
		}

		input, err := caseInput(st.Case)
		if err != nil {
			log.Error("test input unreadable", "case", st.CaseID, "err", err)
			out.Cases = append(out.Cases, CaseResult{CaseID: st.CaseID, ExitCode: execrun.ExitSpawnError, LogPath: st.LogPath})
			out.Failed = true
			if t.Set.FailFast() {
				return out
			}
			continue
		}

		var cr CaseResult
		if ctrl != nil {
			ctrl.Command = st.Command
			cr = t.runInteractive(ctx, ctrl, st, input)
		} else {
			cr = t.runHeadless(ctx, st, input, exported, log)
		}
		out.Cases = append(out.Cases, cr)

		if cr.ExitCode != 0 {
			out.Failed = true
			log.Warn("case failed", "case", cr.CaseID, "exit", cr.ExitCode, "timeout", cr.TimedOut, "log", cr.LogPath)
			if t.Set.FailFast() {
				log.Warn("single-target run, aborting remaining cases")
				return out
			}
			continue
		}
		log.Info("case done", "case", cr.CaseID, "log", cr.LogPath)
	}
	return out
}

func (t *Task) runHeadless(ctx context.Context, st Step, input string, exported []string, log *slog.Logger) CaseResult {
	res, err := execrun.Run(ctx, execrun.Invocation{
		Argv:     st.Argv,
		Env:      exported,
		Input:    input,
		InputVia: t.Run.InputVia,
		LogPath:  st.LogPath,
		Timeout:  time.Duration(t.Run.Timeout) * time.Second,
	})
	if err != nil {
		log.Error("invocation error", "case", st.CaseID, "err", err)
	}
	return CaseResult{
		CaseID:   st.CaseID,
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
		LogPath:  st.LogPath,
		Duration: res.Duration,
	}
}

func (t *Task) runInteractive(ctx context.Context, ctrl *session.Controller, st Step, input string) CaseResult {
	res, err := ctrl.RunCase(ctx, st.CaseID, input)
	if err != nil {
		t.logger().Error("interactive turn error", "agent", t.AgentID, "case", st.CaseID, "err", err)
	}
	t.writeTurnLog(ctrl, st, res)
	return CaseResult{
		CaseID:   st.CaseID,
		ExitCode: res.ExitCode,
		TimedOut: res.ExitCode == session.ExitSignalTimeout,
		LogPath:  st.LogPath,
		Duration: res.Duration,
	}
}

// writeTurnLog records the interactive turn's observable outcome: the
// completion line as received plus the session's trailing pane content. The
// agent's full output lives in its own trajectory directory.
func (t *Task) writeTurnLog(ctrl *session.Controller, st Step, res session.Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "case: %s\nstatus: %d\nsignal: %s\n", st.CaseID, res.ExitCode, res.Line)
	if tail, err := ctrl.Session.CaptureTail(200); err == nil && tail != "" {
		b.WriteString("--- pane tail ---\n")
		b.WriteString(tail)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(st.LogPath, []byte(b.String()), 0o644); err != nil {
		t.logger().Error("turn log write failed", "agent", t.AgentID, "case", st.CaseID, "err", err)
	}
}

func (t *Task) pause(caseID string) {
	in := t.StepIn
	if in == nil {
		in = os.Stdin
	}
	outW := t.StepOut
	if outW == nil {
		outW = os.Stderr
	}
	fmt.Fprintf(outW, "[%s] press Enter to run case %s...", t.AgentID, caseID)
	_, _ = bufio.NewReader(in).ReadString('\n')
}

func caseInput(c cases.Case) (string, error) {
	if c.Path == "" {
		return c.Text, nil
	}
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// sessionName derives a tmux-safe session name for an agent.
func sessionName(agentID string) string {
	safe := strings.Map(func(r rune) rune {
		if r == ':' || r == '.' || r == ' ' {
			return '-'
		}
		return r
	}, agentID)
	return "arena_" + safe
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (t *Task) logger() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}
