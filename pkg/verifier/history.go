package verifier

import (
	"github.com/cespare/xxhash/v2"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/history"
)

func matchEvent(inst *automaton.Instance, obs history.Observation) bool {
	idx := int(obs.EventID)
	e := inst.Base.Events[idx]
	if e.Flags.IsDeterministic {
		return true
	}
	return xxhash.Sum64(inst.EventStates[idx].MatchData) == obs.PayloadHash
}

// VerifyHistory runs the backward History walk used under
// LINEAR_HISTORY, matching VerifyAutomatonLinearHistory exactly,
// including its single-step-then-recheck fallthrough when an
// observation's hash doesn't match the event it claims to be.
//
// Go has no out-of-bounds sentinel pointer to walk past index -1 the
// way the original's `invalid = observations - 1` does; the loop below
// re-checks histIdx >= 0 at each point the original dereferences
// `current` after a decrement, which is the literal translation of
// the same bounds condition without relying on undefined pointer
// arithmetic.
func VerifyHistory(inst *automaton.Instance, assertionEventID int) error {
	if inst.History == nil || !inst.History.Valid() {
		panic("verifier: VerifyHistory called without a valid History")
	}

	hist := inst.History
	histIdx := hist.Len() - 1

	i := assertionEventID - 1
	for i >= 1 {
		e := inst.Base.Events[i]

		if e.Flags.IsOR {
			next, err := verifyORBlockHistory(inst, &histIdx, i)
			if err != nil {
				return err
			}
			i = next
			continue
		}

		if e.Flags.IsDeterministic {
			i--
			continue
		}

		if histIdx < 0 {
			if e.Flags.IsOptional {
				i--
				continue
			}
			return violation("Required event didn't occur")
		}

		if !matchEvent(inst, hist.At(histIdx)) {
			histIdx--
		}

		if histIdx < 0 || int(hist.At(histIdx).EventID) != e.ID {
			if e.Flags.IsOptional {
				i--
				continue
			}
			return violation("Required event didn't occur")
		}

		i--
		histIdx--
	}

	for histIdx >= 0 {
		obs := hist.At(histIdx)
		if int(obs.EventID) > assertionEventID && matchEvent(inst, obs) {
			return violation("Event after assertion happened before assertion")
		}
		histIdx--
	}

	return nil
}

// verifyORBlockHistory mirrors VerifyORBlockLinearHistory: consume
// observations backward while they match some event within the
// maximal OR-block ending at lastOREvent, requiring at least one
// genuine match. Returns the index the outer walk should resume at
// (one before the block's first member).
func verifyORBlockHistory(inst *automaton.Instance, histIdx *int, lastOREvent int) (next int, err error) {
	events := inst.Base.Events

	firstOREvent := lastOREvent
	for firstOREvent-1 >= 1 && events[firstOREvent-1].Flags.IsOR {
		firstOREvent--
	}

	atLeastOne := false

	for *histIdx >= 0 {
		obs := inst.History.At(*histIdx)

		if !matchEvent(inst, obs) {
			*histIdx--
			continue
		}

		id := int(obs.EventID)
		if id >= firstOREvent && id <= lastOREvent {
			atLeastOne = true
		} else {
			break
		}
		*histIdx--
	}

	if !atLeastOne {
		return 0, violation("No event in OR block has occurred")
	}

	return firstOREvent - 1, nil
}
