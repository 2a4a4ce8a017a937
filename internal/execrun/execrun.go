package execrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Exit codes reserved by the runner itself.
const (
	// ExitTimeout marks an invocation killed at its deadline.
	ExitTimeout = 124
	// ExitSpawnError marks a command that could not be started at all.
	ExitSpawnError = 127
)

// Invocation is one headless run of an agent against one test input. Env is
// always an explicit slice handed to the child; the runner never touches the
// process-wide environment table, so concurrent agents cannot observe each
// other's exports.
type Invocation struct {
	Argv     []string
	Env      []string
	Dir      string
	Input    string
	InputVia string // config.InputViaArg or config.InputViaStdin
	LogPath  string
	Timeout  time.Duration
}

// Result is the recorded outcome of one invocation.
type Result struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	LogPath  string
}

// Run executes one invocation to completion, streaming combined stdout and
// stderr to the log file. With a positive timeout the child's whole process
// group is killed at the deadline and the result carries the distinguished
// timeout status.
func Run(ctx context.Context, inv Invocation) (Result, error) {
	if len(inv.Argv) == 0 {
		return Result{ExitCode: ExitSpawnError}, errors.New("execrun: empty argv")
	}

	argv := inv.Argv
	var stdin *strings.Reader
	if inv.InputVia == "stdin" {
		stdin = strings.NewReader(inv.Input)
	} else {
		argv = append(append([]string{}, argv...), inv.Input)
	}

	if err := os.MkdirAll(filepath.Dir(inv.LogPath), 0o755); err != nil {
		return Result{ExitCode: ExitSpawnError}, err
	}
	logFile, err := os.OpenFile(inv.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return Result{ExitCode: ExitSpawnError}, err
	}
	defer logFile.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = inv.Env
	cmd.Dir = inv.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if stdin != nil {
		cmd.Stdin = stdin
	}
	setProcGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: ExitSpawnError, LogPath: inv.LogPath}, fmt.Errorf("execrun: start %s: %w", argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer <-chan time.Time
	if inv.Timeout > 0 {
		t := time.NewTimer(inv.Timeout)
		defer t.Stop()
		timer = t.C
	}

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-timer:
		timedOut = true
		killGroup(cmd)
		waitErr = <-done
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		return Result{ExitCode: ExitSpawnError, Duration: time.Since(start), LogPath: inv.LogPath}, ctx.Err()
	}

	res := Result{
		Duration: time.Since(start),
		LogPath:  inv.LogPath,
	}
	if timedOut {
		res.TimedOut = true
		res.ExitCode = ExitTimeout
		return res, nil
	}
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		res.ExitCode = ExitSpawnError
		return res, waitErr
	}
	return res, nil
}
