package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingReporter struct {
	got []Violation
}

func (r *recordingReporter) Report(v Violation) { r.got = append(r.got, v) }

func TestBanner_WithMessage(t *testing.T) {
	v := Violation{AutomatonName: "mwc", Message: "Required event didn't occur"}
	assert.Equal(t, "TESLA ASSERTION FAILED — Automaton mwc\nReason: Required event didn't occur", Banner(v))
}

func TestBanner_NoMessage(t *testing.T) {
	v := Violation{AutomatonName: "mwc"}
	assert.Equal(t, "TESLA ASSERTION FAILED — Automaton mwc", Banner(v))
}

func TestNewViolation_PlainError(t *testing.T) {
	v := NewViolation("mwc", "run-1", errors.New("boom"))
	assert.Equal(t, "boom", v.Message)
	assert.Equal(t, "run-1", v.RunID)
}

func TestFanout_SkipsNilAndReachesEveryReporter(t *testing.T) {
	a := &recordingReporter{}
	b := &recordingReporter{}
	f := Fanout{a, nil, b}

	f.Report(Violation{AutomatonName: "mwc", Message: "x"})

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
