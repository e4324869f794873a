package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/history"
)

func newMWCLinearInstance(t *testing.T) *automaton.Instance {
	t.Helper()
	a := buildMWC()
	inst := automaton.NewInstance(a)
	inst.Init(nil)
	inst.History = history.New()
	inst.History.MarkValid()
	return inst
}

func TestVerifyHistory_CheckThenAssertionSameKey_Passes(t *testing.T) {
	inst := newMWCLinearInstance(t)
	// The check is observed through the ordinary non-deterministic
	// transition path, which records it to History. The assertion's own
	// data arrives via UpdateEventWithData, which only ever writes
	// matchData in place and never appends a History entry for the
	// assertion event itself.
	inst.EventStates[1].MatchData = []byte("1:1")
	inst.History.Add(1, []byte("1:1"))

	inst.EventStates[2].MatchData = []byte("1:1")

	assert.NoError(t, VerifyHistory(inst, 2))
}

func TestVerifyHistory_AssertionWithoutCheck_Fails(t *testing.T) {
	inst := newMWCLinearInstance(t)
	inst.EventStates[2].MatchData = []byte("1:1")

	err := VerifyHistory(inst, 2)
	require.Error(t, err)
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, "Required event didn't occur", v.Message)
}

func TestVerifyHistory_EventAfterAssertion_Fails(t *testing.T) {
	// A minimal automaton where the assertion is event 1, so the
	// backward walk's main loop (which only runs down to index 1)
	// never executes, isolating the trailing "nothing may follow the
	// assertion" check.
	start := &automaton.Event{ID: 0, Name: "start", Flags: automaton.EventFlags{IsInitial: true, IsDeterministic: true}}
	assertion := &automaton.Event{ID: 1, Name: "assertion", Flags: automaton.EventFlags{IsAssertion: true}, MatchDataSize: 8}
	post := &automaton.Event{ID: 2, Name: "post", MatchDataSize: 8}
	end := &automaton.Event{ID: 3, Name: "end", Flags: automaton.EventFlags{IsDeterministic: true, IsFinal: true}}
	start.Successors = []*automaton.Event{assertion}
	assertion.Successors = []*automaton.Event{post, end}
	post.Successors = []*automaton.Event{end}

	a := &automaton.Automaton{ID: 9, Name: "minimal", Flags: automaton.AutomatonFlags{IsThreadLocal: true}, Events: []*automaton.Event{start, assertion, post, end}}

	inst := automaton.NewInstance(a)
	inst.Init(nil)
	inst.History = history.New()
	inst.History.MarkValid()

	// The assertion event (id 1) never gets a History entry of its own —
	// its data arrives via UpdateEventWithData, which doesn't touch
	// History. Only the post-assertion event is recorded here.
	inst.EventStates[2].MatchData = []byte("b")
	inst.History.Add(2, []byte("b"))

	err := VerifyHistory(inst, 1)
	require.Error(t, err)
	v, _ := AsViolation(err)
	assert.Equal(t, "Event after assertion happened before assertion", v.Message)
}
