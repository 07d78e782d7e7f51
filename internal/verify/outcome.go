// Package verify runs the verifier over ported tests and reduces its free-text
// diagnostics to a small set of outcomes.
package verify

import (
	"fmt"
	"strings"
)

// Outcome is the classified result of one verifier run.
type Outcome string

const (
	// Pass means the kernel was verified safe.
	Pass Outcome = "PASS"
	// Race means the verifier reported a data race.
	Race Outcome = "RACE"
	// Abort means the verifier could not complete its analysis.
	Abort Outcome = "ABORT"
	// Fail only appears in baselines, where races are recorded as failures.
	Fail Outcome = "FAIL"
)

// Outcomes lists the values a classification can produce, in report order.
var Outcomes = []Outcome{Pass, Race, Abort}

// ParseOutcome accepts any known outcome name, case-insensitively.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(s))); o {
	case Pass, Race, Abort, Fail:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// Normalize maps an outcome onto the baseline vocabulary.
func (o Outcome) Normalize() Outcome {
	if o == Race {
		return Fail
	}
	return o
}

func (o Outcome) String() string { return string(o) }
