// Package report implements the assertion-failure reporting path (C11):
// the original engine's TeslaAssert.c, which unconditionally formats a
// banner to stderr and panics. A Reporter generalizes that single
// hardcoded behavior into a pluggable interface so pkg/sink can fan a
// violation out to Postgres/SQLite/Redis in addition to (or instead
// of) halting the process.
package report

import (
	"fmt"

	"github.com/Mindburn-Labs/thintesla/pkg/verifier"
)

// Violation is the fully-addressed failure a Reporter receives: which
// automaton instance failed, and why. AutomatonName/RunID are carried
// separately from the verifier.Violation so a Reporter never needs to
// reach back into pkg/automaton.
type Violation struct {
	AutomatonName string
	RunID         string
	Message       string
}

// NewViolation builds a Violation from a verifier error, unwrapping a
// *verifier.Violation where present and falling back to err.Error()
// for any other error a Verifier might return (there should be none,
// but a Reporter must not panic on an unexpected error shape).
func NewViolation(automatonName, runID string, err error) Violation {
	msg := err.Error()
	if v, ok := verifier.AsViolation(err); ok {
		msg = v.Message
	}
	return Violation{AutomatonName: automatonName, RunID: runID, Message: msg}
}

// Reporter receives a Violation once an assertion has been determined
// to have failed. Implementations must not assume they are the only
// Reporter in play — pkg/sink composes several behind a fan-out.
type Reporter interface {
	Report(v Violation)
}

// Banner renders the exact banner text TeslaAssertionFailMessage
// writes to stderr, reused by every Reporter that wants to print it
// (Halting, and any sink that also echoes to the console).
func Banner(v Violation) string {
	if v.Message == "" {
		return fmt.Sprintf("TESLA ASSERTION FAILED — Automaton %s", v.AutomatonName)
	}
	return fmt.Sprintf("TESLA ASSERTION FAILED — Automaton %s\nReason: %s", v.AutomatonName, v.Message)
}

// Fanout reports to every Reporter in order. A nil entry is skipped,
// matching the tolerant style pkg/sink's optional sinks are
// constructed with (a Reporter left unconfigured is simply absent,
// not an error).
type Fanout []Reporter

func (f Fanout) Report(v Violation) {
	for _, r := range f {
		if r != nil {
			r.Report(v)
		}
	}
}
