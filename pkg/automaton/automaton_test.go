package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/thintesla/pkg/threadkey"
)

func buildSimple() *Automaton {
	e0 := &Event{ID: 0, Name: "start", Flags: EventFlags{IsInitial: true}}
	e1 := &Event{ID: 1, Name: "check", MatchDataSize: 8}
	e2 := &Event{ID: 2, Name: "assert", Flags: EventFlags{IsAssertion: true}, MatchDataSize: 8}
	e3 := &Event{ID: 3, Name: "end"}
	e0.Successors = []*Event{e1}
	e1.Successors = []*Event{e2}
	e2.Successors = []*Event{e3}

	return &Automaton{
		ID:    1,
		Name:  "mwc",
		Flags: AutomatonFlags{IsThreadLocal: true},
		Events: []*Event{e0, e1, e2, e3},
	}
}

func TestInstance_InitStartsAtEventZero(t *testing.T) {
	a := buildSimple()
	inst := NewInstance(a)
	inst.Init(nil)

	require.Equal(t, a.Events[0], inst.CurrentEvent)
	assert.Equal(t, uint64(1), inst.CurrentTemporalTag)
	assert.True(t, inst.IsActive)
	assert.True(t, inst.IsCorrect)
	assert.NotNil(t, inst.EventStates[1].Store)
}

func TestInstance_ResetFreesThreadKeyLast(t *testing.T) {
	a := buildSimple()
	inst := NewInstance(a)
	require.True(t, inst.TryClaim(threadkey.Key(7)))
	inst.Init(nil)

	inst.Reset()

	assert.Equal(t, threadkey.Invalid, inst.ThreadKey())
	assert.False(t, inst.IsActive)
	assert.Nil(t, inst.CurrentEvent)
}

func TestEvent_IsFinal(t *testing.T) {
	a := buildSimple()
	assert.False(t, a.Events[0].IsFinal())
	assert.True(t, a.Events[3].IsFinal())
}

func TestEvent_HasSuccessor(t *testing.T) {
	a := buildSimple()
	assert.True(t, a.Events[0].HasSuccessor(a.Events[1]))
	assert.False(t, a.Events[0].HasSuccessor(a.Events[2]))
}
