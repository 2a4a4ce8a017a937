package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marcohefti/agent-arena/internal/fifo"
)

// Exit codes reserved for interactive turns.
const (
	// ExitWaitFailed marks a completion line that did not match the expected
	// case identifier.
	ExitWaitFailed = 125
	// ExitSignalTimeout marks a completion read that hit its deadline.
	ExitSignalTimeout = 126
)

// Controller owns one agent's interactive lifecycle. One session per test
// file: the previous teardown asks the agent to exit but does not guarantee
// it, so every case kills and respawns.
type Controller struct {
	Session       Session
	Channel       fifo.Channel
	Command       string // resolved shell command for the agent
	Dir           string
	Env           map[string]string
	ExitCommand   string
	Settle        time.Duration
	SignalTimeout time.Duration
	Log           *slog.Logger
}

// Result is the recorded outcome of one interactive turn.
type Result struct {
	ExitCode int
	Line     string // completion line as received, for the log
	Duration time.Duration
}

// RunCase drives one complete turn: spawn, settle, case-id tag, input paste,
// completion wait, teardown. The case-id tag lets a hook inside the agent
// correlate its completion signal with this input.
func (c *Controller) RunCase(ctx context.Context, caseID, input string) (Result, error) {
	start := time.Now()

	if err := c.Channel.Ensure(); err != nil {
		return Result{ExitCode: ExitWaitFailed}, err
	}
	if err := c.Session.Spawn(c.Dir, c.Command, c.Env); err != nil {
		return Result{ExitCode: ExitWaitFailed}, fmt.Errorf("session spawn: %w", err)
	}
	// Fixed settle wait for the program to reach its input prompt. tmux has
	// no portable readiness probe for an arbitrary program.
	c.sleep(ctx, c.Settle)

	if err := c.Session.SendLiteral("CASE_ID=" + caseID); err != nil {
		return Result{ExitCode: ExitWaitFailed}, err
	}
	if err := c.Session.Enter(); err != nil {
		return Result{ExitCode: ExitWaitFailed}, err
	}
	c.sleep(ctx, c.Settle)

	if !strings.HasSuffix(input, "\n") {
		input += "\n"
	}
	if err := c.Session.Paste(input); err != nil {
		return Result{ExitCode: ExitWaitFailed}, err
	}
	if err := c.Session.Enter(); err != nil {
		return Result{ExitCode: ExitWaitFailed}, err
	}

	res := c.await(ctx, caseID)
	res.Duration = time.Since(start)

	c.teardown(ctx)
	return res, nil
}

// await blocks on the completion channel and evaluates the received line
// against the expected "<case_id> DONE".
func (c *Controller) await(ctx context.Context, caseID string) Result {
	waitCtx := ctx
	if c.SignalTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.SignalTimeout)
		defer cancel()
	}

	line, err := c.Channel.ReadLine(waitCtx)
	if err != nil {
		if errors.Is(err, fifo.ErrSignalTimeout) {
			c.logger().Warn("completion signal timed out", "case", caseID, "timeout", c.SignalTimeout)
			return Result{ExitCode: ExitSignalTimeout}
		}
		c.logger().Warn("completion read failed", "case", caseID, "err", err)
		return Result{ExitCode: ExitWaitFailed}
	}

	if line == fifo.DoneLine(caseID) {
		return Result{ExitCode: 0, Line: line}
	}
	c.logger().Warn("completion signal mismatch", "case", caseID, "line", line)
	if tail, err := c.Session.CaptureTail(20); err == nil && tail != "" {
		c.logger().Debug("session tail", "case", caseID, "tail", tail)
	}
	return Result{ExitCode: ExitWaitFailed, Line: line}
}

// teardown asks the agent to exit on its own terms. Best-effort: it never
// blocks on the agent actually going away, and the next spawn kills whatever
// is left.
func (c *Controller) teardown(ctx context.Context) {
	c.sleep(ctx, c.Settle)
	_ = c.Session.Enter()
	_ = c.Session.SendLiteral(c.ExitCommand)
	_ = c.Session.Enter()
}

// Close kills the session after the last case.
func (c *Controller) Close() error {
	return c.Session.Kill()
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (c *Controller) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
