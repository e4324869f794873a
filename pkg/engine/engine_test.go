package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/config"
	"github.com/Mindburn-Labs/thintesla/pkg/report"
)

type recordingReporter struct {
	got []report.Violation
}

func (r *recordingReporter) Report(v report.Violation) { r.got = append(r.got, v) }

// buildMWC constructs the canonical mac-write-check automaton from
// spec §8: syscall_enter; mac_vnode_check_write(cred,vnode,err);
// assertion(cred,vnode); syscall_return.
func buildMWC() *automaton.Automaton {
	enter := &automaton.Event{ID: 0, Name: "syscall_enter", Flags: automaton.EventFlags{IsInitial: true, IsDeterministic: true}}
	check := &automaton.Event{ID: 1, Name: "mac_vnode_check_write", MatchDataSize: 8}
	assertion := &automaton.Event{ID: 2, Name: "assertion", Flags: automaton.EventFlags{IsAssertion: true}, MatchDataSize: 8}
	ret := &automaton.Event{ID: 3, Name: "syscall_return", Flags: automaton.EventFlags{IsDeterministic: true, IsFinal: true}}

	enter.Successors = []*automaton.Event{check, assertion, ret}
	check.Successors = []*automaton.Event{assertion}
	assertion.Successors = []*automaton.Event{ret}

	return &automaton.Automaton{
		ID:     1,
		Name:   "mwc",
		Flags:  automaton.AutomatonFlags{IsThreadLocal: true},
		Events: []*automaton.Event{enter, check, assertion, ret},
	}
}

func newTestEngine() (*Engine, *recordingReporter) {
	rec := &recordingReporter{}
	return New(&config.Config{}, rec, nil), rec
}

func TestEngine_MWC_HappyPath_NoViolation(t *testing.T) {
	eng, rec := newTestEngine()
	a := buildMWC()

	key := []byte{1, 1, 1, 1, 1, 1, 1, 1}

	inst := eng.StartAutomaton(a)
	require.NotNil(t, inst)

	eng.UpdateAutomaton(a, a.Events[1], key) // check observed with this argument tuple

	// At the assertion site the instrumenter knows the asserted values;
	// it writes them into both watched events' matchData before firing
	// the deterministic transition that actually verifies.
	eng.UpdateEventWithData(a, 1, key)
	eng.UpdateEventWithData(a, 2, key)
	eng.UpdateAutomatonDeterministic(a, a.Events[2])

	assert.True(t, inst.ReachedAssertion)

	eng.EndAutomaton(a, a.Events[3])

	// EndAutomaton resets a non-linked instance on a clean run.
	assert.Empty(t, rec.got)
	assert.False(t, inst.IsActive)
}

func TestEngine_MWC_AssertionWithoutCheck_Fails(t *testing.T) {
	eng, rec := newTestEngine()
	a := buildMWC()

	key := []byte{2, 2, 2, 2, 2, 2, 2, 2}

	inst := eng.StartAutomaton(a)
	require.NotNil(t, inst)

	// No UpdateAutomaton for the check event at all.
	eng.UpdateEventWithData(a, 2, key)
	eng.UpdateAutomatonDeterministic(a, a.Events[2])

	require.Len(t, rec.got, 1)
	assert.Equal(t, "Required event didn't occur", rec.got[0].Message)
	assert.False(t, inst.IsActive)
}

func TestEngine_MWC_WrongArgumentTuple_Fails(t *testing.T) {
	eng, rec := newTestEngine()
	a := buildMWC()

	observed := []byte{3, 3, 3, 3, 3, 3, 3, 3}
	asserted := []byte{4, 4, 4, 4, 4, 4, 4, 4}

	eng.StartAutomaton(a)
	eng.UpdateAutomaton(a, a.Events[1], observed)
	eng.UpdateEventWithData(a, 1, asserted) // asserting a tuple that was never observed
	eng.UpdateEventWithData(a, 2, asserted)
	eng.UpdateAutomatonDeterministic(a, a.Events[2])

	require.Len(t, rec.got, 1)
	assert.Equal(t, "Required event didn't occur", rec.got[0].Message)
}

func TestEngine_AssertionReachedTwice_Fails(t *testing.T) {
	eng, rec := newTestEngine()
	a := buildMWC()
	key := []byte{5, 5, 5, 5, 5, 5, 5, 5}

	eng.StartAutomaton(a)
	eng.UpdateAutomaton(a, a.Events[1], key)
	eng.UpdateEventWithData(a, 1, key)
	eng.UpdateEventWithData(a, 2, key)
	eng.UpdateAutomatonDeterministic(a, a.Events[2])
	require.Empty(t, rec.got)

	// A second, spurious transition into the (already-reached) assertion.
	eng.UpdateAutomatonDeterministic(a, a.Events[2])

	require.Len(t, rec.got, 1)
	assert.Equal(t, "Assertion site reached multiple times", rec.got[0].Message)
}

func TestEngine_DoubleStartAutomaton_Tolerated(t *testing.T) {
	eng, rec := newTestEngine()
	a := buildMWC()

	first := eng.StartAutomaton(a)
	second := eng.StartAutomaton(a)

	assert.Same(t, first, second)
	assert.Empty(t, rec.got)
}

// linkedPair builds two minimal linked automata, each a single
// deterministic bound (start -> end), for EndLinkedAutomata's
// single-winner policy.
func linkedPair() (*automaton.Automaton, *automaton.Automaton) {
	build := func(id int, name string) *automaton.Automaton {
		start := &automaton.Event{ID: 0, Name: "start", Flags: automaton.EventFlags{IsInitial: true, IsDeterministic: true}}
		end := &automaton.Event{ID: 1, Name: "end", Flags: automaton.EventFlags{IsDeterministic: true, IsFinal: true}}
		start.Successors = []*automaton.Event{end}
		return &automaton.Automaton{
			ID:    id,
			Name:  name,
			Flags: automaton.AutomatonFlags{IsThreadLocal: true, IsLinked: true, IsDeterministic: true},
			Events: []*automaton.Event{start, end},
		}
	}
	return build(1, "left"), build(2, "right")
}

func TestEngine_EndLinkedAutomata_OneWinnerSucceeds(t *testing.T) {
	eng, rec := newTestEngine()
	left, right := linkedPair()

	leftInst := eng.StartAutomaton(left)
	eng.StartAutomaton(right)

	eng.UpdateAutomatonDeterministic(left, left.Events[1]) // left reaches its final event
	// right never advances past its initial event.

	eng.EndLinkedAutomata([]*automaton.Automaton{left, right})

	assert.Empty(t, rec.got)
	assert.False(t, leftInst.IsActive, "the winner is reset, which clears isActive")
}

func TestEngine_EndLinkedAutomata_NoWinnerFails(t *testing.T) {
	eng, rec := newTestEngine()
	left, right := linkedPair()

	eng.StartAutomaton(left)
	eng.StartAutomaton(right)
	// Neither automaton advances past its initial event.

	eng.EndLinkedAutomata([]*automaton.Automaton{left, right})

	require.Len(t, rec.got, 1)
}

func TestEngine_GuidelineMode_DeactivatesAfterFinalTransition(t *testing.T) {
	rec := &recordingReporter{}
	eng := New(&config.Config{GuidelineMode: true}, rec, nil)

	start := &automaton.Event{ID: 0, Name: "start", Flags: automaton.EventFlags{IsInitial: true, IsDeterministic: true}}
	end := &automaton.Event{ID: 1, Name: "end", Flags: automaton.EventFlags{IsDeterministic: true, IsFinal: true}}
	start.Successors = []*automaton.Event{end}
	a := &automaton.Automaton{
		ID:     3,
		Name:   "guideline",
		Flags:  automaton.AutomatonFlags{IsThreadLocal: true, IsDeterministic: true},
		Events: []*automaton.Event{start, end},
	}

	inst := eng.StartAutomaton(a)
	eng.UpdateAutomatonDeterministic(a, end)

	assert.False(t, inst.IsActive)
	assert.Empty(t, rec.got)
}
