// Package verifier implements the two assertion-time decision
// procedures: the default tag-interval sweep (C9) and the alternate
// linear-history backward walk (C10, used under LINEAR_HISTORY),
// matching the original engine's VerifyAutomaton/VerifyAutomatonLinearHistory
// in TeslaLogic.c/TeslaLogicLinearHistory.c.
package verifier

import (
	"errors"
	"math/bits"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
)

// Violation is returned when an observed trace fails verification. Its
// Error text is one of the normative messages from spec §4.8/§4.9/§8;
// pkg/report formats it into the user-visible banner.
type Violation struct {
	Message string
}

func (v *Violation) Error() string { return v.Message }

func violation(msg string) error { return &Violation{Message: msg} }

// AsViolation reports whether err is a Violation, and returns it.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	ok := errors.As(err, &v)
	return v, ok
}

func leftmostOne(x uint64) int { return 63 - bits.LeadingZeros64(x) }

func isPowerOfTwo(x uint64) bool { return x&(x-1) == 0 }

func eventTag(inst *automaton.Instance, idx int) uint64 {
	e := inst.Base.Events[idx]
	st := &inst.EventStates[idx]
	if e.Flags.IsDeterministic {
		return st.DeterministicTag
	}
	return st.Store.Get(string(st.MatchData))
}

// VerifyTags runs the tag-interval sweep at an assertion event: events
// 1..numEvents-2 are walked maintaining a sliding [lowerBound,
// upperBound) window over epoch bits, failing on the first
// inconsistency found. Returns nil if the trace is legal.
func VerifyTags(inst *automaton.Instance) error {
	events := inst.Base.Events
	n := len(events)

	var lowerBound, upperBound uint64 // 0 means unset (INVALID_TAG)

	for i := 1; i < n-1; i++ {
		e := events[i]

		if e.Flags.IsAssertion {
			return verifyAfterAssertion(inst, i+1, lowerBound)
		}

		if e.Flags.IsOR {
			next, err := verifyORBlock(inst, i, &lowerBound, &upperBound)
			if err != nil {
				return err
			}
			i = next
			continue
		}

		tag := eventTag(inst, i)

		if e.Flags.IsOptional && (tag == 0 || tag < upperBound) {
			continue
		}
		if tag == 0 {
			return violation("Required event didn't occur")
		}
		if tag < upperBound {
			return violation("Event occurred in the past")
		}

		upperBound = uint64(1) << leftmostOne(tag)
		if lowerBound == 0 {
			lowerBound = upperBound
		}
		if (upperBound-lowerBound)&tag != 0 {
			return violation("Multiple events of the same type occurred")
		}
	}

	return nil
}

// verifyORBlock mirrors VerifyORBlock: scans forward from i across a
// maximal run of isOR events (and, implicitly, the non-OR event that
// terminates the block), requiring at least one member observed at or
// after upperBound, rejecting a member observed more than once within
// the valid-epoch window, and widening upperBound to the block's
// furthest observed epoch. Returns the index the outer sweep should
// resume at (one before the terminating non-OR event, matching the
// original's `*i = localIndex - 1` ahead of the for-loop's own i++).
func verifyORBlock(inst *automaton.Instance, i int, lowerBound, upperBound *uint64) (next int, err error) {
	events := inst.Base.Events
	n := len(events)

	max := *upperBound
	min := ^uint64(0)
	validMask := (*lowerBound - 1) ^ ^uint64(0)

	atLeastOne := false

	for localIndex := i; localIndex < n; localIndex++ {
		e := events[localIndex]

		if !e.Flags.IsDeterministic && inst.EventStates[localIndex].Store == nil {
			continue
		}

		if !e.Flags.IsOR {
			if !atLeastOne {
				return 0, violation("No event in OR block has occurred")
			}
			if *lowerBound == 0 {
				*lowerBound = max
			}
			*upperBound = max
			return localIndex - 1, nil
		}

		tag := eventTag(inst, localIndex)

		if tag != 0 && tag >= *upperBound {
			atLeastOne = true
		} else if tag == 0 || tag < *lowerBound {
			continue
		}

		if validMask != 0 && (!isPowerOfTwo(validMask&tag) || (validMask&tag) < *upperBound) {
			return 0, violation("OR event occurred multiple times")
		}

		bound := uint64(1) << leftmostOne(tag)
		if bound > max {
			max = bound
		}
		if bound < min {
			min = bound
		}
	}

	panic("verifier: OR block ran off the end of the event list without a terminating event")
}

// verifyAfterAssertion rejects any structurally-post-assertion event
// whose observed tag says it actually happened at or after lowerBound
// — i.e. within the window the pre-assertion checks already accepted.
func verifyAfterAssertion(inst *automaton.Instance, start int, lowerBound uint64) error {
	events := inst.Base.Events
	n := len(events)

	for i := start; i < n-1; i++ {
		tag := eventTag(inst, i)
		if tag != 0 && tag >= lowerBound {
			return violation("Event after assertion happened before assertion")
		}
	}
	return nil
}
