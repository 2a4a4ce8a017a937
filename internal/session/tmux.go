package session

import (
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// The controller drives the agent through a detached tmux session: tmux is
// the one ubiquitous way to own a pseudo-terminal and inject keystrokes into
// an otherwise opaque interactive program.

// Installed reports whether the tmux binary is available.
func Installed() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

func run(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func runSilent(args ...string) error {
	return exec.Command("tmux", args...).Run()
}

// Session is one named detached tmux session hosting an agent.
type Session struct {
	Name string
}

// Exists checks whether the session is alive.
func (s Session) Exists() bool {
	return runSilent("has-session", "-t", s.Name) == nil
}

// Kill tears the session down. Missing sessions are not an error.
func (s Session) Kill() error {
	if !s.Exists() {
		return nil
	}
	return runSilent("kill-session", "-t", s.Name)
}

// Spawn starts the agent command in a fresh detached session, killing any
// stale session of the same name first. env entries are applied to the
// session's environment only (tmux -e), never to this process.
func (s Session) Spawn(dir, command string, env map[string]string) error {
	if err := s.Kill(); err != nil {
		return err
	}
	args := []string{"new-session", "-d", "-s", s.Name}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	for _, kv := range sortedPairs(env) {
		args = append(args, "-e", kv)
	}
	args = append(args, command)
	return runSilent(args...)
}

// SendLiteral types text into the session without key-name interpretation.
func (s Session) SendLiteral(text string) error {
	return runSilent("send-keys", "-t", s.Name, "-l", "--", text)
}

// Enter sends the activation keystroke.
func (s Session) Enter() error {
	return runSilent("send-keys", "-t", s.Name, "C-m")
}

// Paste injects text as a single paste operation via a tmux buffer, so
// multi-line test input arrives atomically instead of line-by-line.
func (s Session) Paste(text string) error {
	load := exec.Command("tmux", "load-buffer", "-b", "arena-input", "-")
	load.Stdin = strings.NewReader(text)
	if err := load.Run(); err != nil {
		return fmt.Errorf("tmux load-buffer: %w", err)
	}
	return runSilent("paste-buffer", "-d", "-b", "arena-input", "-t", s.Name)
}

// CaptureTail returns the last lines of the session's pane, for diagnostics
// when a turn fails.
func (s Session) CaptureTail(lines int) (string, error) {
	return run("capture-pane", "-t", s.Name, "-p", "-S", fmt.Sprintf("-%d", lines))
}

// sortedPairs renders env as KEY=VALUE in sorted key order so spawn commands
// stay reproducible across runs.
func sortedPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
