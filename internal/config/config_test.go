package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const tomlBody = `
[env]
COMMON = "shared"
TOKEN = "env:ARENA_TEST_TOKEN"

[run]
output_dir = "out"
test_dir = "tests"
timeout = 30
jobs = 2
glob = "*.txt"
delay = 1

[agents.pywen]
command = "pywen"
args = "--model ${MODEL}"
init = "pywen --version"
model = "qwen-max"
output_subdir = "pywen-logs"

[agents.pywen.env]
MODEL_KEY = "env:QWEN_KEY"

[agents.pywen.run]
mode = "interactive"
delay = 0

[agents.claude]
command = "claude"
args = "-p"
`

func TestLoad_TOML(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "agents.toml", tomlBody))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.AgentIDs(); len(got) != 2 || got[0] != "claude" || got[1] != "pywen" {
		t.Fatalf("AgentIDs: %v", got)
	}
	if cfg.Env["COMMON"] != "shared" || cfg.Env["TOKEN"] != "env:ARENA_TEST_TOKEN" {
		t.Fatalf("global env: %#v", cfg.Env)
	}

	a, err := cfg.Agent("pywen")
	if err != nil {
		t.Fatalf("Agent: %v", err)
	}
	if a.Model != "qwen-max" || a.Env["MODEL_KEY"] != "env:QWEN_KEY" {
		t.Fatalf("agent fields: %+v", a)
	}
	if a.OutputName("pywen") != "pywen-logs" {
		t.Fatalf("OutputName: %q", a.OutputName("pywen"))
	}
	if a.Exit() != "/exit" {
		t.Fatalf("Exit default: %q", a.Exit())
	}
}

func TestEffective_OverridesWinKeyForKey(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "agents.toml", tomlBody))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	eff, err := cfg.Effective("pywen")
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if eff.Mode != ModeInteractive {
		t.Fatalf("mode override lost: %q", eff.Mode)
	}
	if eff.Delay != 0 {
		t.Fatalf("explicit zero override lost: %d", eff.Delay)
	}
	if eff.Timeout != 30 || eff.OutputDir != "out" || eff.Glob != "*.txt" {
		t.Fatalf("defaults not inherited: %+v", eff)
	}

	// Sibling agent keeps the plain defaults.
	eff, err = cfg.Effective("claude")
	if err != nil {
		t.Fatalf("Effective: %v", err)
	}
	if eff.Mode != ModeHeadless || eff.Delay != 1 {
		t.Fatalf("claude effective run polluted: %+v", eff)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"run:",
		"  output_dir: out",
		"agents:",
		"  solo:",
		"    command: solo-agent",
		"    args: --fast",
	}, "\n")

	cfg, err := Load(writeConfig(t, "agents.yaml", body))
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	a, err := cfg.Agent("solo")
	if err != nil {
		t.Fatalf("Agent: %v", err)
	}
	if a.Command != "solo-agent" || a.Args != "--fast" {
		t.Fatalf("agent: %+v", a)
	}
	// Defaults still apply beneath the file.
	if cfg.Run.Mode != ModeHeadless || cfg.Run.FifoDir == "" {
		t.Fatalf("defaults lost: %+v", cfg.Run)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		body string
	}{
		{"missing command", "a.toml", "[agents.x]\nargs = \"-p\"\n"},
		{"no agents", "a.toml", "[run]\noutput_dir = \"out\"\n"},
		{"bad mode", "a.toml", "[run]\nmode = \"batch\"\n\n[agents.x]\ncommand = \"x\"\n"},
		{"bad agent mode", "a.toml", "[agents.x]\ncommand = \"x\"\n[agents.x.run]\nmode = \"nope\"\n"},
		{"bad extension", "a.conf", "whatever"},
		{"unparsable", "a.toml", "[agents.x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.file, tt.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAgent_Unknown(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "agents.toml", tomlBody))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.Agent("gemini"); err == nil {
		t.Fatal("expected unknown-agent error")
	}
	if _, err := cfg.Effective("gemini"); err == nil {
		t.Fatal("expected unknown-agent error")
	}
}
