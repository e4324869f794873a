package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/store"
)

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

func newMWCInstance(t *testing.T) *automaton.Instance {
	t.Helper()
	a := buildMWC()
	inst := automaton.NewInstance(a)
	inst.Init(nil)
	return inst
}

func insertCheck(t *testing.T, inst *automaton.Instance, tag uint64, key string) {
	t.Helper()
	inst.EventStates[1].Store.Insert(tag, key)
}

// insertAssertion records the assertion's observation and, modelling
// UpdateEventWithData at the assertion site, sets key as the match data
// that both the check and the assertion are looked up by.
func insertAssertion(t *testing.T, inst *automaton.Instance, tag uint64, key string) {
	t.Helper()
	inst.EventStates[2].Store.Insert(tag, key)
	inst.EventStates[1].MatchData = []byte(key)
	inst.EventStates[2].MatchData = []byte(key)
}

func TestVerifyTags_CheckThenAssertionSameKey_Passes(t *testing.T) {
	inst := newMWCInstance(t)
	insertCheck(t, inst, 0x2, "1:1")
	insertAssertion(t, inst, 0x2, "1:1")

	assert.NoError(t, VerifyTags(inst))
}

func TestVerifyTags_AssertionWithoutCheck_Fails(t *testing.T) {
	inst := newMWCInstance(t)
	insertAssertion(t, inst, 0x2, "1:1")

	err := VerifyTags(inst)
	require.Error(t, err)
	v, ok := AsViolation(err)
	require.True(t, ok)
	assert.Equal(t, "Required event didn't occur", v.Message)
}

func TestVerifyTags_WrongKey_Fails(t *testing.T) {
	inst := newMWCInstance(t)
	insertCheck(t, inst, 0x2, "2:2")
	insertAssertion(t, inst, 0x2, "1:1")

	err := VerifyTags(inst)
	require.Error(t, err)
	v, _ := AsViolation(err)
	assert.Equal(t, "Required event didn't occur", v.Message)
}

func TestVerifyTags_LaterEventInEarlierEpoch_PastFailure(t *testing.T) {
	a := buildMWC()
	// A second check follows the first in canonical order but was
	// observed in an earlier epoch than it.
	check2 := &automaton.Event{ID: 4, Name: "check2", MatchDataSize: 8}
	a.Events = []*automaton.Event{a.Events[0], a.Events[1], check2, a.Events[2], a.Events[3]}

	inst := automaton.NewInstance(a)
	inst.Init(nil)
	inst.EventStates[1].Store.Insert(0x4, "1:1")
	inst.EventStates[1].MatchData = []byte("1:1")
	inst.EventStates[2].Store.Insert(0x2, "1:1")
	inst.EventStates[2].MatchData = []byte("1:1")

	err := VerifyTags(inst)
	require.Error(t, err)
	v, _ := AsViolation(err)
	assert.Equal(t, "Event occurred in the past", v.Message)
}

func TestVerifyTags_ORBlock_NoneObserved_Fails(t *testing.T) {
	a := buildMWC()
	oldCheck, oldAssertion := a.Events[1], a.Events[2]
	// Insert an OR block between check and assertion: two alternative
	// checks, neither observed.
	or1 := &automaton.Event{ID: 4, Name: "or1", Flags: automaton.EventFlags{IsOR: true}, MatchDataSize: 8}
	or2 := &automaton.Event{ID: 5, Name: "or2", Flags: automaton.EventFlags{IsOR: true}, MatchDataSize: 8}
	a.Events = []*automaton.Event{a.Events[0], or1, or2, oldCheck, oldAssertion, a.Events[3]}
	checkIdx, assertionIdx := 3, 4

	inst := automaton.NewInstance(a)
	inst.Init(nil)
	inst.EventStates[checkIdx].Store.Insert(0x2, "1:1")
	inst.EventStates[assertionIdx].Store.Insert(0x2, "1:1")

	err := VerifyTags(inst)
	require.Error(t, err)
	v, _ := AsViolation(err)
	assert.Equal(t, "No event in OR block has occurred", v.Message)
}

func TestStore_New_SmokeForTagVerifier(t *testing.T) {
	// Sanity: HT store round-trips through the same path VerifyTags reads.
	s := store.New(store.HT, 4)
	s.Insert(7, "k")
	assert.Equal(t, uint64(7), s.Get("k"))
}
