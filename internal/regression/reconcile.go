// Package regression compares verifier outcomes against a stored baseline and
// exports outcomes in the baseline's source form.
package regression

import (
	"path/filepath"
	"strings"

	"kernelport/internal/manifest"
	"kernelport/internal/verify"
)

// Regression is a tracked test whose outcome changed.
type Regression struct {
	Test string
	Old  verify.Outcome
	New  verify.Outcome
}

// Untracked is a test the baseline does not know about.
type Untracked struct {
	Test    string
	Outcome verify.Outcome
}

// Report is the result of a reconciliation, in current-run order.
type Report struct {
	Regressions []Regression
	Untracked   []Untracked
	// Compared counts entries checked against the baseline.
	Compared int
	// Skipped counts ABORT entries left out of the comparison.
	Skipped int
}

// Clean reports whether nothing needs attention.
func (r *Report) Clean() bool {
	return len(r.Regressions) == 0 && len(r.Untracked) == 0
}

// StripPrefix turns an artifact path into a corpus-relative key by removing
// the output root. Paths outside prefix are returned slash-separated but
// otherwise unchanged.
func StripPrefix(path, prefix string) string {
	path = filepath.ToSlash(path)
	if prefix == "" {
		return path
	}
	p := strings.TrimSuffix(filepath.ToSlash(filepath.Clean(prefix)), "/") + "/"
	return strings.TrimPrefix(path, p)
}

// Reconcile compares current outcomes (artifact path, outcome) with baseline
// outcomes (test key, outcome). Current keys have prefix stripped before
// lookup. RACE is compared as FAIL and ABORT is not compared at all.
func Reconcile(current, baseline []manifest.Pair, prefix string) (*Report, error) {
	expected := make(map[string]verify.Outcome, len(baseline))
	for _, b := range baseline {
		o, err := verify.ParseOutcome(b.Value)
		if err != nil {
			return nil, err
		}
		expected[b.Key] = o.Normalize()
	}

	entries, err := dedupe(current)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, e := range entries {
		if e.outcome == verify.Abort {
			report.Skipped++
			continue
		}
		key := StripPrefix(e.key, prefix)
		got := e.outcome.Normalize()
		want, ok := expected[key]
		if !ok {
			report.Untracked = append(report.Untracked, Untracked{Test: key, Outcome: got})
			continue
		}
		report.Compared++
		if got != want {
			report.Regressions = append(report.Regressions, Regression{Test: key, Old: want, New: got})
		}
	}
	return report, nil
}

type entry struct {
	key     string
	outcome verify.Outcome
}

// dedupe parses outcomes and collapses repeated keys: a key keeps its first
// position and its last outcome.
func dedupe(pairs []manifest.Pair) ([]entry, error) {
	index := make(map[string]int, len(pairs))
	var out []entry
	for _, p := range pairs {
		o, err := verify.ParseOutcome(p.Value)
		if err != nil {
			return nil, err
		}
		if i, ok := index[p.Key]; ok {
			out[i].outcome = o
			continue
		}
		index[p.Key] = len(out)
		out = append(out, entry{key: p.Key, outcome: o})
	}
	return out, nil
}
