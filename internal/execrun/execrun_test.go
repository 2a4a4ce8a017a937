package execrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesCombinedOutputAndExitCode(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "case.log")
	res, err := Run(context.Background(), Invocation{
		Argv:     []string{"sh", "-c", `echo out; echo err >&2; exit 3`},
		Env:      []string{"PATH=" + os.Getenv("PATH")},
		Input:    "",
		InputVia: "stdin",
		LogPath:  logPath,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 || res.TimedOut {
		t.Fatalf("result: %+v", res)
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "out") || !strings.Contains(string(raw), "err") {
		t.Fatalf("combined log missing streams: %q", string(raw))
	}
}

func TestRun_InputAsFinalArgument(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "case.log")
	res, err := Run(context.Background(), Invocation{
		Argv:     []string{"sh", "-c", `printf '%s' "$1"`, "arena"},
		Env:      []string{"PATH=" + os.Getenv("PATH")},
		Input:    "the test input",
		InputVia: "arg",
		LogPath:  logPath,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit: %d", res.ExitCode)
	}
	raw, _ := os.ReadFile(logPath)
	if string(raw) != "the test input" {
		t.Fatalf("input not delivered as final arg: %q", string(raw))
	}
}

func TestRun_InputViaStdin(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "case.log")
	_, err := Run(context.Background(), Invocation{
		Argv:     []string{"cat"},
		Env:      []string{"PATH=" + os.Getenv("PATH")},
		Input:    "piped\n",
		InputVia: "stdin",
		LogPath:  logPath,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	raw, _ := os.ReadFile(logPath)
	if string(raw) != "piped\n" {
		t.Fatalf("stdin not delivered: %q", string(raw))
	}
}

func TestRun_TimeoutKillsProcessTree(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "case.log")
	start := time.Now()
	res, err := Run(context.Background(), Invocation{
		Argv:     []string{"sh", "-c", "sleep 30"},
		Env:      []string{"PATH=" + os.Getenv("PATH")},
		InputVia: "stdin",
		LogPath:  logPath,
		Timeout:  200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut || res.ExitCode != ExitTimeout {
		t.Fatalf("expected timeout result, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill took too long: %v", elapsed)
	}
}

func TestRun_ExplicitEnvOnly(t *testing.T) {
	t.Setenv("ARENA_LEAK_PROBE", "leaked")

	logPath := filepath.Join(t.TempDir(), "case.log")
	_, err := Run(context.Background(), Invocation{
		Argv:     []string{"sh", "-c", `printf '%s' "$ARENA_LEAK_PROBE$ARENA_OWN"`},
		Env:      []string{"PATH=" + os.Getenv("PATH"), "ARENA_OWN=mine"},
		InputVia: "stdin",
		LogPath:  logPath,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	raw, _ := os.ReadFile(logPath)
	if string(raw) != "mine" {
		t.Fatalf("child env not isolated to explicit slice: %q", string(raw))
	}
}

func TestRun_SpawnError(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "case.log")
	res, err := Run(context.Background(), Invocation{
		Argv:     []string{filepath.Join(t.TempDir(), "no-such-binary")},
		InputVia: "stdin",
		LogPath:  logPath,
	})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if res.ExitCode != ExitSpawnError {
		t.Fatalf("exit: %d", res.ExitCode)
	}
}
