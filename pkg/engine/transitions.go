package engine

import (
	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
)

// UpdateAutomaton implements the non-deterministic transition: record
// event with payload data against the calling goroutine's instance,
// matching UpdateAutomaton in TeslaLogic.c exactly (including its
// reachedAssertion replay shortcut and, under LinearHistory, its
// delegation to the append-only History instead of a per-event
// Store).
func (e *Engine) UpdateAutomaton(base *automaton.Automaton, event *automaton.Event, data []byte) {
	inst := e.resolveForEvent(base, event)
	if inst == nil {
		return
	}
	e.recordTransition(base)

	state := &inst.EventStates[event.ID]

	if inst.ReachedAssertion {
		if matchData(data, state) {
			e.updateDeterministic(inst, event, false)
		}
		return
	}

	current := inst.CurrentEvent
	last := inst.LastEvent
	succ := current.HasSuccessor(event)

	if e.Config.LinearHistory {
		if succ {
			inst.CurrentEvent = event
		}
		e.updateLinearHistory(inst, event, data)
		return
	}

	if succ {
		inst.CurrentEvent = event
	} else if event.ID <= last.ID {
		inst.CurrentTemporalTag <<= 1
	}
	inst.LastEvent = event

	if state.Store != nil {
		state.Store.Insert(inst.CurrentTemporalTag, string(data))
	}

	if event.ID > current.ID && !succ {
		inst.CurrentTemporalTag <<= 1
	}
}

// UpdateAutomatonDeterministic implements the deterministic
// transition entry point, matching UpdateAutomatonDeterministic's
// direct call into UpdateAutomatonDeterministicGeneric(automaton,
// event, true).
func (e *Engine) UpdateAutomatonDeterministic(base *automaton.Automaton, event *automaton.Event) {
	inst := e.resolveForEvent(base, event)
	if inst == nil {
		return
	}
	e.recordTransition(base)
	e.updateDeterministic(inst, event, true)
}

// updateDeterministic implements UpdateAutomatonDeterministicGeneric:
// a successor-table walk with a one-retry reset, OR-block same-block
// tolerance, epoch advancement for non-deterministic automata, and the
// assertion-site bookkeeping (reached-multiple-times /
// didn't-cause-a-transition / verifier dispatch / GuidelineMode
// self-deactivation).
func (e *Engine) updateDeterministic(inst *automaton.Instance, event *automaton.Event, updateTag bool) {
	if !inst.IsActive {
		return
	}

	originalCurrent := inst.CurrentEvent

	triedAgain := false
	foundSuccessor := false

	for {
		if inst.CurrentEvent == event {
			// Double event: reset to the start and retry once.
			if inst.History != nil {
				inst.History.Clear()
			}
			inst.CurrentEvent = inst.Base.Events[0]
			if !triedAgain {
				triedAgain = true
				continue
			}
			break
		}

		current := inst.CurrentEvent
		if current.HasSuccessor(event) {
			inst.CurrentEvent = event
			foundSuccessor = true
		}
		if !foundSuccessor && current.Flags.IsOR && event.Flags.IsOR && event.HasSuccessor(current) {
			// Same OR block, either order: tolerated.
			foundSuccessor = true
		}

		if !foundSuccessor {
			if inst.History != nil {
				inst.History.Clear()
			}
			inst.CurrentEvent = inst.Base.Events[0]
			if !triedAgain {
				triedAgain = true
				continue
			}
		}
		break
	}

	if !inst.Base.Flags.IsDeterministic {
		if !e.Config.LinearHistory {
			backtracking := !foundSuccessor || triedAgain
			if backtracking && event.ID <= originalCurrent.ID {
				inst.CurrentTemporalTag <<= 1
			}
			if updateTag {
				inst.EventStates[event.ID].DeterministicTag |= inst.CurrentTemporalTag
			}
			if backtracking && event.ID > originalCurrent.ID {
				// Went briefly into the future, now walking back.
				inst.CurrentTemporalTag <<= 1
			}
			inst.LastEvent = inst.CurrentEvent
		} else if !inst.ReachedAssertion && event.Flags.IsOR && !event.Flags.IsAssertion {
			e.updateLinearHistory(inst, event, nil)
		}
	}

	if event.Flags.IsAssertion {
		if inst.ReachedAssertion {
			e.reportFailure(inst, "Assertion site reached multiple times")
			return
		}
		if !foundSuccessor {
			e.reportFailure(inst, "Assertion site didn't cause a transition")
			return
		}

		if !inst.Base.Flags.IsDeterministic {
			e.runVerifier(inst, event)
		}

		inst.ReachedAssertion = true
	}

	if e.Config.GuidelineMode && foundSuccessor && event.Flags.IsFinal {
		inst.IsActive = false
	}
}

// updateLinearHistory implements UpdateAutomatonLinearHistory: append
// (event, data) to the instance's History, a no-op if History hasn't
// been latched valid.
func (e *Engine) updateLinearHistory(inst *automaton.Instance, event *automaton.Event, data []byte) {
	if inst.History == nil || !inst.History.Valid() {
		return
	}
	inst.History.Add(uint32(event.ID), data)
}
