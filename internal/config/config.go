package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	ModeHeadless    = "headless"
	ModeInteractive = "interactive"
)

// Input delivery conventions for headless invocations.
const (
	InputViaArg   = "arg"
	InputViaStdin = "stdin"
)

// Run holds process-wide defaults. Per-agent RunOverride values win
// key-for-key. Durations are whole seconds, matching the config surface.
type Run struct {
	OutputDir     string `toml:"output_dir" yaml:"output_dir"`
	TestDir       string `toml:"test_dir" yaml:"test_dir"`
	Mode          string `toml:"mode" yaml:"mode"`
	Timeout       int    `toml:"timeout" yaml:"timeout"`
	InitTimeout   int    `toml:"init_timeout" yaml:"init_timeout"`
	Jobs          int    `toml:"jobs" yaml:"jobs"`
	Glob          string `toml:"glob" yaml:"glob"`
	Recursive     bool   `toml:"recursive" yaml:"recursive"`
	Delay         int    `toml:"delay" yaml:"delay"`
	SettleDelay   int    `toml:"settle_delay" yaml:"settle_delay"`
	SignalTimeout int    `toml:"signal_timeout" yaml:"signal_timeout"`
	FifoDir       string `toml:"fifo_dir" yaml:"fifo_dir"`
	InputVia      string `toml:"input_via" yaml:"input_via"`
}

// RunOverride is the per-agent subset of Run. Pointer fields distinguish
// "not set" from an explicit zero.
type RunOverride struct {
	OutputDir     *string `toml:"output_dir" yaml:"output_dir"`
	TestDir       *string `toml:"test_dir" yaml:"test_dir"`
	Mode          *string `toml:"mode" yaml:"mode"`
	Timeout       *int    `toml:"timeout" yaml:"timeout"`
	InitTimeout   *int    `toml:"init_timeout" yaml:"init_timeout"`
	Glob          *string `toml:"glob" yaml:"glob"`
	Recursive     *bool   `toml:"recursive" yaml:"recursive"`
	Delay         *int    `toml:"delay" yaml:"delay"`
	SettleDelay   *int    `toml:"settle_delay" yaml:"settle_delay"`
	SignalTimeout *int    `toml:"signal_timeout" yaml:"signal_timeout"`
	InputVia      *string `toml:"input_via" yaml:"input_via"`
}

// Agent describes one external agent under test. Env values may be literal
// or "env:NAME" indirection references.
type Agent struct {
	Command      string            `toml:"command" yaml:"command"`
	Args         string            `toml:"args" yaml:"args"`
	Init         string            `toml:"init" yaml:"init"`
	Model        string            `toml:"model" yaml:"model"`
	Env          map[string]string `toml:"env" yaml:"env"`
	OutputSubdir string            `toml:"output_subdir" yaml:"output_subdir"`
	TrajEnv      string            `toml:"traj_env" yaml:"traj_env"`
	ExitCommand  string            `toml:"exit_command" yaml:"exit_command"`
	Run          RunOverride       `toml:"run" yaml:"run"`
}

// Config is the full agents file: global env defaults, run defaults, and the
// agent table. Immutable after Load.
type Config struct {
	Env    map[string]string `toml:"env" yaml:"env"`
	Run    Run               `toml:"run" yaml:"run"`
	Agents map[string]Agent  `toml:"agents" yaml:"agents"`
}

// DefaultRun returns the built-in run defaults applied before the config
// file is merged in.
func DefaultRun() Run {
	return Run{
		OutputDir:   "logs",
		Mode:        ModeHeadless,
		InitTimeout: 300,
		Glob:        "*",
		SettleDelay: 2,
		FifoDir:     "/tmp/agent-done",
		InputVia:    InputViaArg,
	}
}

// Load reads and validates an agents file. The markup is chosen by
// extension: .toml, or .yaml/.yml. Any error here is fatal before a single
// process spawns.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Config{Run: DefaultRun()}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension (want .toml, .yaml or .yml)", path)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: no agents defined")
	}
	if err := validateMode(c.Run.Mode); err != nil {
		return fmt.Errorf("run.mode: %w", err)
	}
	if err := validateInputVia(c.Run.InputVia); err != nil {
		return fmt.Errorf("run.input_via: %w", err)
	}
	for _, id := range c.AgentIDs() {
		a := c.Agents[id]
		if strings.TrimSpace(a.Command) == "" {
			return fmt.Errorf("agent %q: missing command", id)
		}
		if a.Run.Mode != nil {
			if err := validateMode(*a.Run.Mode); err != nil {
				return fmt.Errorf("agent %q: run.mode: %w", id, err)
			}
		}
		if a.Run.InputVia != nil {
			if err := validateInputVia(*a.Run.InputVia); err != nil {
				return fmt.Errorf("agent %q: run.input_via: %w", id, err)
			}
		}
	}
	return nil
}

func validateMode(mode string) error {
	switch mode {
	case ModeHeadless, ModeInteractive:
		return nil
	}
	return fmt.Errorf("invalid mode %q (expected %s|%s)", mode, ModeHeadless, ModeInteractive)
}

func validateInputVia(v string) error {
	switch v {
	case InputViaArg, InputViaStdin:
		return nil
	}
	return fmt.Errorf("invalid value %q (expected %s|%s)", v, InputViaArg, InputViaStdin)
}

// AgentIDs returns every configured agent identifier, sorted.
func (c *Config) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Agent looks up one agent by identifier.
func (c *Config) Agent(id string) (Agent, error) {
	a, ok := c.Agents[id]
	if !ok {
		return Agent{}, fmt.Errorf("unknown agent %q (configured: %s)", id, strings.Join(c.AgentIDs(), ", "))
	}
	return a, nil
}

// Effective merges an agent's run overrides over the process-wide defaults,
// key-for-key.
func (c *Config) Effective(id string) (Run, error) {
	a, err := c.Agent(id)
	if err != nil {
		return Run{}, err
	}
	r := c.Run
	o := a.Run
	if o.OutputDir != nil {
		r.OutputDir = *o.OutputDir
	}
	if o.TestDir != nil {
		r.TestDir = *o.TestDir
	}
	if o.Mode != nil {
		r.Mode = *o.Mode
	}
	if o.Timeout != nil {
		r.Timeout = *o.Timeout
	}
	if o.InitTimeout != nil {
		r.InitTimeout = *o.InitTimeout
	}
	if o.Glob != nil {
		r.Glob = *o.Glob
	}
	if o.Recursive != nil {
		r.Recursive = *o.Recursive
	}
	if o.Delay != nil {
		r.Delay = *o.Delay
	}
	if o.SettleDelay != nil {
		r.SettleDelay = *o.SettleDelay
	}
	if o.SignalTimeout != nil {
		r.SignalTimeout = *o.SignalTimeout
	}
	if o.InputVia != nil {
		r.InputVia = *o.InputVia
	}
	return r, nil
}

// OutputName is the agent's subdirectory under the run output root:
// output_subdir when configured, else the agent id.
func (a Agent) OutputName(id string) string {
	if strings.TrimSpace(a.OutputSubdir) != "" {
		return a.OutputSubdir
	}
	return id
}

// Exit returns the interactive teardown command, defaulting to "/exit".
func (a Agent) Exit() string {
	if strings.TrimSpace(a.ExitCommand) != "" {
		return a.ExitCommand
	}
	return "/exit"
}
