package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"kernelport/internal/port"
	"kernelport/internal/regression"
	"kernelport/internal/store"
	"kernelport/internal/verify"
)

// PortSummary renders the end-of-stage counts of a port run.
func PortSummary(s *port.Summary, styles Styles) string {
	t := NewTable("Port summary", Column{Title: "Tests"}, Column{Title: "Count", Numeric: true})
	t.Row(Text("general"), Count(s.General))
	t.Row(Text("unsupported"), Count(s.Unsupported))
	if s.NotGeneral > 0 {
		t.Row(Text("not general"), Count(s.NotGeneral))
	}
	t.Row(Text("compile failed"), Count(s.CompileFailed))
	t.Row(Text("disassembly failed"), Count(s.DisassembleFailed))
	t.Row(Text("porting errors"), Count(s.PortingErrors))
	ported := Count(len(s.Ported))
	if len(s.Ported) > 0 {
		ported.Tone = Good
	}
	t.Row(Text("ported"), ported)
	if len(s.Stray) > 0 {
		t.Row(Text("skipped (no test directory)"), Cell{Text: strconv.Itoa(len(s.Stray)), Tone: Warn})
	}
	t.Footer(Text("total"), Count(s.Total))
	return t.View(styles)
}

// OutcomeCounts renders per-outcome totals of a verify run.
func OutcomeCounts(counts map[verify.Outcome]int, styles Styles) string {
	t := NewTable("Verification outcomes", Column{Title: "Outcome"}, Column{Title: "Count", Numeric: true})
	total := 0
	for _, o := range verify.Outcomes {
		total += counts[o]
		t.Row(OutcomeCell(o), Count(counts[o]))
	}
	t.Footer(Text("total"), Count(total))
	return t.View(styles)
}

// Unclassified renders results that need a new classification rule. The raw
// verifier output is in the log.
func Unclassified(results []verify.Result, styles Styles) string {
	t := NewTable("Unclassified verifier output", Column{Title: "Test"}, Column{Title: "Artifact"})
	for _, r := range results {
		t.Row(Text(r.Test), Text(r.Artifact))
	}
	return t.View(styles)
}

// Reconciliation renders regressions and untracked tests. A clean report
// renders a single line.
func Reconciliation(r *regression.Report, styles Styles) string {
	if r.Clean() {
		return styles.Success.Render(fmt.Sprintf("No differences (%d compared, %d aborted skipped)", r.Compared, r.Skipped)) + "\n"
	}

	var sb strings.Builder
	reg := NewTable("Expectation failed", Column{Title: "Test"}, Column{Title: "Baseline"}, Column{Title: "Current"})
	for _, e := range r.Regressions {
		reg.Row(Text(e.Test), OutcomeCell(e.Old), Cell{Text: e.New.String(), Tone: Bad})
	}
	sb.WriteString(reg.View(styles))

	un := NewTable("Not in the expectation", Column{Title: "Test"}, Column{Title: "Current"})
	for _, e := range r.Untracked {
		un.Row(Text(e.Test), OutcomeCell(e.Outcome))
	}
	sb.WriteString(un.View(styles))
	return sb.String()
}

// Runs renders a list of recorded runs.
func Runs(runs []store.Run, styles Styles) string {
	if len(runs) == 0 {
		return styles.Muted.Render("No runs recorded") + "\n"
	}
	t := NewTable("Run history",
		Column{Title: "ID"},
		Column{Title: "Stage"},
		Column{Title: "Started"},
		Column{Title: "Duration", Numeric: true},
		Column{Title: "Counts"})
	for _, r := range runs {
		t.Row(
			Text(r.ID),
			Text(r.Stage),
			Text(r.StartedAt.Local().Format(time.DateTime)),
			Text(r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()),
			Text(FormatCounts(r.Counts)),
		)
	}
	return t.View(styles)
}

// RunOutcomes renders the per-test records of one run.
func RunOutcomes(outcomes []store.Outcome, styles Styles) string {
	t := NewTable("", Column{Title: "Test"}, Column{Title: "Outcome"}, Column{Title: "Rule"})
	for _, o := range outcomes {
		cell := Text(o.Outcome)
		if parsed, err := verify.ParseOutcome(o.Outcome); err == nil {
			cell = OutcomeCell(parsed)
		}
		t.Row(Text(o.Test), cell, Text(o.Rule))
	}
	return t.View(styles)
}

// FormatCounts renders counts as "k=v" pairs in sorted key order.
func FormatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
