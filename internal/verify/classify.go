package verify

import "strings"

// ToolResult is what the classifier needs from a verifier run.
type ToolResult struct {
	ExitCode int
	Output   string
}

// Rule maps diagnostic text onto an outcome. A rule matches when the text
// contains every AllOf substring and, if AnyOf is set, at least one of AnyOf.
type Rule struct {
	Name    string
	AllOf   []string
	AnyOf   []string
	Outcome Outcome
}

// Matches reports whether text satisfies the rule.
func (r Rule) Matches(text string) bool {
	for _, s := range r.AllOf {
		if !strings.Contains(text, s) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return len(r.AllOf) > 0
	}
	for _, s := range r.AnyOf {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// Rules is evaluated top to bottom; the first match wins. Append new
// diagnostics at the end unless they must shadow an existing rule.
var Rules = []Rule{
	{Name: "race", AllOf: []string{"possible", "race on"}, Outcome: Race},
	{Name: "barrier-divergence", AllOf: []string{"barrier may be reached by"}, Outcome: Abort},
	{Name: "null-pointer", AllOf: []string{"possible null pointer access for"}, Outcome: Pass},
	{Name: "assertion", AllOf: []string{"this assertion might not hold"}, Outcome: Abort},
	{Name: "implementation-limitation", AllOf: []string{"this is an implementation limitation"}, Outcome: Abort},
	{Name: "not-gbpl", AllOf: []string{"is not a .gbpl file"}, Outcome: Abort},
	{Name: "global-size-divide", AllOf: []string{"global size does not divide by dimension"}, Outcome: Abort},
	{Name: "dimension-mismatch", AllOf: []string{"Dimensions of local and global size must match"}, Outcome: Abort},
	{Name: "num-groups-with-global-size", AllOf: []string{"--num_groups=: not allowed with argument --global_size="}, Outcome: Abort},
	{Name: "implicit-shuffle", AllOf: []string{"implicit declaration of function 'shuffle'"}, Outcome: Abort},
	{Name: "sigabrt", AllOf: []string{"Got a SIGABRT while executing native code"}, Outcome: Abort},
	{Name: "frontend-crash", AnyOf: []string{"llvm::sys::PrintStackTrace", "bugle"}, Outcome: Abort},
	{Name: "source-location", AllOf: []string{"getting souce loc info failed with"}, Outcome: Abort},
}

// Classification is the classifier's verdict.
type Classification struct {
	Outcome Outcome
	// Rule names the matching rule; empty for exit 0 and for unclassified text.
	Rule string
	// Unclassified is set when a failing run matched no rule. The outcome is
	// then Abort and the diagnostic needs a human to write a rule for it.
	Unclassified bool
}

// Classify maps a verifier run onto exactly one outcome. A zero exit status is
// always Pass.
func Classify(r ToolResult) Classification {
	return ClassifyWith(Rules, r)
}

// ClassifyWith is Classify over an explicit rule list.
func ClassifyWith(rules []Rule, r ToolResult) Classification {
	if r.ExitCode == 0 {
		return Classification{Outcome: Pass}
	}
	for _, rule := range rules {
		if rule.Matches(r.Output) {
			return Classification{Outcome: rule.Outcome, Rule: rule.Name}
		}
	}
	return Classification{Outcome: Abort, Unclassified: true}
}
