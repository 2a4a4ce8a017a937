// Package fifo implements the out-of-band completion channel used by
// interactive runs: a named pipe per agent that a hook inside the agent
// writes one "<case_id> DONE" line to per completed turn. Hooks that cannot
// reach the pipe append the same line to a fallback log instead, which the
// reader tails.
package fifo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrSignalTimeout marks a completion read that hit its deadline before any
// line arrived. Distinct from a mismatched line, which is a protocol
// violation rather than a stall.
var ErrSignalTimeout = errors.New("fifo: completion signal timed out")

const pollInterval = 50 * time.Millisecond

// Channel is one agent's rendezvous point. It spans the whole run for that
// agent: it is read once per test file and left in place between reads.
type Channel struct {
	Path         string
	FallbackPath string
}

// ForAgent derives the channel paths for an agent under dir.
func ForAgent(dir, agent string) Channel {
	return Channel{
		Path:         filepath.Join(dir, agent+".done"),
		FallbackPath: filepath.Join(dir, agent+".done.log"),
	}
}

// Ensure creates the named pipe idempotently: an existing pipe is reused, a
// regular file squatting on the path is replaced.
func (c Channel) Ensure() error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	return ensureFIFO(c.Path)
}

// DoneLine renders the expected completion line for a case identifier.
func DoneLine(caseID string) string {
	return caseID + " DONE"
}

// ReadLine blocks until one line arrives on the pipe or the fallback log, or
// ctx expires. A deadline expiry yields ErrSignalTimeout; with no deadline
// the read waits indefinitely, which is the configured default.
func (c Channel) ReadLine(ctx context.Context) (string, error) {
	lines := make(chan string, 2)
	stop := make(chan struct{})
	defer close(stop)

	go pollFIFO(c.Path, stop, lines)
	go c.tailFallback(stop, lines)

	select {
	case ln := <-lines:
		return strings.TrimRight(ln, "\r\n"), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrSignalTimeout
		}
		return "", ctx.Err()
	}
}

// WriteLine delivers one completion line: a non-blocking pipe write when a
// reader is waiting, else an append to the fallback log. Mirrors the hook
// behavior on the writing side so `arena done` can stand in for a hook.
func (c Channel) WriteLine(line string) error {
	if err := writeFIFO(c.Path, line+"\n"); err == nil {
		return nil
	}
	f, err := os.OpenFile(c.FallbackPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("fifo: fallback append: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

// tailFallback watches the fallback log and emits lines appended after the
// read was armed. A slow ticker backs up fsnotify so a missed event cannot
// stall the read forever.
func (c Channel) tailFallback(stop <-chan struct{}, lines chan<- string) {
	var offset int64
	if fi, err := os.Stat(c.FallbackPath); err == nil {
		offset = fi.Size()
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		_ = watcher.Add(filepath.Dir(c.FallbackPath))
	}

	ticker := time.NewTicker(10 * pollInterval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}
	for {
		select {
		case <-stop:
			return
		case ev := <-events:
			if ev.Name != c.FallbackPath {
				continue
			}
		case <-ticker.C:
		}
		offset = c.drainFallback(offset, stop, lines)
	}
}

// drainFallback emits complete lines appended past offset and returns the
// new offset.
func (c Channel) drainFallback(offset int64, stop <-chan struct{}, lines chan<- string) int64 {
	f, err := os.Open(c.FallbackPath)
	if err != nil {
		return offset
	}
	defer f.Close()
	if _, err := f.Seek(offset, 0); err != nil {
		return offset
	}
	buf := make([]byte, 64*1024)
	n, _ := f.Read(buf)
	if n <= 0 {
		return offset
	}
	chunk := string(buf[:n])
	consumed := 0
	for {
		idx := strings.IndexByte(chunk[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := chunk[consumed : consumed+idx]
		consumed += idx + 1
		select {
		case lines <- line:
		case <-stop:
			return offset + int64(consumed)
		}
	}
	return offset + int64(consumed)
}
