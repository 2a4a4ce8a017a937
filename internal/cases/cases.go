package cases

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceKind distinguishes a batch sweep over a directory from a focused
// single-target run. The distinction drives failure policy: directory runs
// record failures and continue, single-target runs fail fast.
type SourceKind int

const (
	SourceDir SourceKind = iota
	SourceSingle
	SourceInline
)

// Case is one test input. ID correlates an interactive completion signal
// with the input that produced it; LogName is the per-case log file name
// with path separators flattened so nested inputs cannot collide on disk.
type Case struct {
	ID      string
	Path    string // empty for inline cases
	LogName string
	Text    string // inline input text
}

// Set is the immutable, ordered case sequence for one agent task.
type Set struct {
	Kind  SourceKind
	Cases []Case
}

// Enumerate builds the case sequence for target. A directory yields every
// glob match in lexicographic order (descending into subdirectories when
// recursive is set); a plain file yields exactly one case.
func Enumerate(target, glob string, recursive bool) (Set, error) {
	if glob == "" {
		glob = "*"
	}
	fi, err := os.Stat(target)
	if err != nil {
		return Set{}, fmt.Errorf("test target: %w", err)
	}
	if !fi.IsDir() {
		return Set{Kind: SourceSingle, Cases: []Case{fromRel(filepath.Base(target), target)}}, nil
	}

	var rels []string
	if recursive {
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, merr := filepath.Match(glob, d.Name())
			if merr != nil {
				return fmt.Errorf("glob %q: %w", glob, merr)
			}
			if !ok {
				return nil
			}
			rel, rerr := filepath.Rel(target, path)
			if rerr != nil {
				return rerr
			}
			rels = append(rels, rel)
			return nil
		})
		if err != nil {
			return Set{}, err
		}
	} else {
		entries, err := os.ReadDir(target)
		if err != nil {
			return Set{}, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ok, merr := filepath.Match(glob, e.Name())
			if merr != nil {
				return Set{}, fmt.Errorf("glob %q: %w", glob, merr)
			}
			if ok {
				rels = append(rels, e.Name())
			}
		}
	}
	sort.Strings(rels)

	out := Set{Kind: SourceDir}
	for _, rel := range rels {
		out.Cases = append(out.Cases, fromRel(rel, filepath.Join(target, rel)))
	}
	return out, nil
}

// Inline wraps a literal input string as a single case. id defaults to
// "inline" when empty.
func Inline(id, text string) Set {
	if strings.TrimSpace(id) == "" {
		id = "inline"
	}
	return Set{Kind: SourceInline, Cases: []Case{{
		ID:      id,
		LogName: id + ".log",
		Text:    text,
	}}}
}

// fromRel derives identity from a path relative to the test root. Separators
// flatten to "__", so a top-level file keeps its plain base name while
// same-named files in different subdirectories stay distinct by construction.
func fromRel(rel, path string) Case {
	flat := strings.ReplaceAll(filepath.ToSlash(rel), "/", "__")
	id := strings.TrimSuffix(flat, filepath.Ext(flat))
	if id == "" {
		id = flat
	}
	return Case{
		ID:      id,
		Path:    path,
		LogName: id + ".log",
	}
}

// FailFast reports whether a non-zero case outcome should abort the
// remaining sequence.
func (s Set) FailFast() bool {
	return s.Kind != SourceDir
}
