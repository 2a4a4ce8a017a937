package envmap

import (
	"reflect"
	"testing"
)

func mapLookup(m map[string]string) Lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestResolve_OverridesWinKeyForKey(t *testing.T) {
	t.Parallel()

	defaults := map[string]string{"A": "global-a", "B": "global-b"}
	overrides := map[string]string{"B": "agent-b", "C": "agent-c"}

	got := Resolve(defaults, overrides, mapLookup(nil))
	want := map[string]string{"A": "global-a", "B": "agent-b", "C": "agent-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve: got %#v, want %#v", got, want)
	}
}

func TestResolve_EnvIndirection(t *testing.T) {
	t.Parallel()

	proc := map[string]string{"API_KEY": "s3cret"}
	got := Resolve(nil, map[string]string{
		"KEY":     "env:API_KEY",
		"MISSING": "env:NOT_SET",
		"LITERAL": "env-like but literal",
		"EMPTY":   "env:",
	}, mapLookup(proc))

	if got["KEY"] != "s3cret" {
		t.Fatalf("KEY: got %q", got["KEY"])
	}
	if got["MISSING"] != "" {
		t.Fatalf("MISSING should resolve to empty, got %q", got["MISSING"])
	}
	if got["LITERAL"] != "env-like but literal" {
		t.Fatalf("LITERAL changed: %q", got["LITERAL"])
	}
	if got["EMPTY"] != "" {
		t.Fatalf("EMPTY: got %q", got["EMPTY"])
	}
}

func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()

	proc := map[string]string{"HOME_DIR": "/home/u"}
	defaults := map[string]string{"H": "env:HOME_DIR", "X": "1"}
	overrides := map[string]string{"X": "2"}

	first := Resolve(defaults, overrides, mapLookup(proc))
	second := Resolve(defaults, overrides, mapLookup(proc))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Resolve not idempotent: %#v vs %#v", first, second)
	}
}

func TestResolve_IsolationBetweenAgents(t *testing.T) {
	t.Parallel()

	proc := map[string]string{"SHARED": "proc"}
	a := Resolve(map[string]string{"SHARED": "env:SHARED"}, map[string]string{"MODEL": "model-a"}, mapLookup(proc))
	b := Resolve(map[string]string{"SHARED": "env:SHARED"}, map[string]string{"MODEL": "model-b"}, mapLookup(proc))

	if a["MODEL"] == b["MODEL"] {
		t.Fatalf("agent maps must be independent: %q", a["MODEL"])
	}
	// Mutating one resolved map must not leak into the other.
	a["SHARED"] = "poisoned"
	if b["SHARED"] != "proc" {
		t.Fatalf("isolation violated: %q", b["SHARED"])
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	env := map[string]string{"MODEL": "gpt-x", "EMPTY": ""}
	proc := map[string]string{"FROM_PROC": "proc-val"}

	tests := []struct {
		in   string
		want string
	}{
		{"--model ${MODEL}", "--model gpt-x"},
		{"--model ${MODEL:-fallback}", "--model gpt-x"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${NOPE:-dflt}", "dflt"},
		{"${NOPE}", ""},
		{"${FROM_PROC}", "proc-val"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := Expand(tt.in, env, mapLookup(proc)); got != tt.want {
			t.Errorf("Expand(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportList_SortedAndAppended(t *testing.T) {
	t.Parallel()

	base := []string{"PATH=/bin"}
	got := ExportList(base, map[string]string{"B": "2", "A": "1"})
	want := []string{"PATH=/bin", "A=1", "B=2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExportList: got %#v, want %#v", got, want)
	}
}

func TestVarName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want string
	}{
		{"pywen", "PYWEN_TRAJ_DIR"},
		{"claude-code", "CLAUDE_CODE_TRAJ_DIR"},
		{"a.b c", "A_B_C_TRAJ_DIR"},
		{"", "AGENT_TRAJ_DIR"},
	}
	for _, tt := range tests {
		if got := VarName(tt.id, "_TRAJ_DIR"); got != tt.want {
			t.Errorf("VarName(%q): got %q, want %q", tt.id, got, tt.want)
		}
	}
}
