package envmap

import (
	"os"
	"sort"
	"strings"
)

// Values of the form "env:NAME" resolve to the invoking process's NAME
// variable instead of the literal text.
const indirectPrefix = "env:"

// Lookup reports the value of an environment variable and whether it is set.
// os.LookupEnv satisfies it; tests substitute their own.
type Lookup func(name string) (string, bool)

// Resolve merges agent-specific overrides over process-wide defaults
// (override keys win key-for-key) and resolves env: indirection through
// lookup. Literal values pass through unchanged. A missing indirection target
// resolves to the empty string, never an error: optional variables stay
// non-fatal.
func Resolve(defaults, overrides map[string]string, lookup Lookup) map[string]string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = resolveValue(v, lookup)
	}
	for k, v := range overrides {
		out[k] = resolveValue(v, lookup)
	}
	return out
}

func resolveValue(v string, lookup Lookup) string {
	if !strings.HasPrefix(v, indirectPrefix) {
		return v
	}
	name := strings.TrimSpace(strings.TrimPrefix(v, indirectPrefix))
	if name == "" {
		return ""
	}
	got, _ := lookup(name)
	return got
}

// Expand substitutes ${VAR} and ${VAR:-default} placeholders in s.
// Resolution consults env first, then lookup (the process environment in
// production). An unresolved reference without a default expands to the
// empty string.
func Expand(s string, env map[string]string, lookup Lookup) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return os.Expand(s, func(ref string) string {
		name, def, hasDef := strings.Cut(ref, ":-")
		if v, ok := env[name]; ok && v != "" {
			return v
		}
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
		if hasDef {
			return def
		}
		return ""
	})
}

// ExportList renders env as KEY=VALUE pairs in sorted key order appended to
// base (typically os.Environ()). Later entries win when a spawned process
// parses its environment, so resolved values override inherited ones without
// ever mutating the global table.
func ExportList(base []string, env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(base)+len(keys))
	out = append(out, base...)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// VarName derives an environment-variable name from an agent identifier:
// upper-cased with every non-alphanumeric run collapsed to a single
// underscore, suffixed with suffix.
func VarName(agentID, suffix string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(agentID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		name = "AGENT"
	}
	return name + suffix
}
