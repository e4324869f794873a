// Package history implements the append-only observation log used
// under LINEAR_HISTORY mode, matching the original engine's
// TeslaHistory.c/.h: a record of every event seen plus a hash of its
// argument bytes, walked backward by the linear-history verifier
// (pkg/verifier) instead of the tag-interval sweep used by default.
package history

import (
	"github.com/cespare/xxhash/v2"

	"github.com/Mindburn-Labs/thintesla/pkg/teslavector"
)

// Observation records one event occurrence: which event fired and a
// hash of the argument bytes it carried (0 if the event has no
// argument data), matching ObservationHeader+HashSize in the original.
type Observation struct {
	EventID     uint32
	PayloadHash uint64
}

// History is a growable log of Observations. The zero value is not
// ready to use; call New.
//
// valid mirrors the original's TeslaHistory.valid: it is never set by
// the History itself (TeslaHistory_Create never touches it) but by its
// owner, once allocation of the backing store has succeeded — see
// pkg/automaton's Init, which is where TA_InitLinearHistory's allocate-
// then-latch-valid dance is reproduced.
type History struct {
	entries *teslavector.Vector[Observation]
	valid   bool
}

// New returns an empty, not-yet-valid History. Call MarkValid once the
// caller is satisfied this History is safe to record into.
func New() *History {
	return &History{entries: teslavector.New[Observation]()}
}

// Valid reports whether this History's owner has latched it as usable.
func (h *History) Valid() bool { return h.valid }

// MarkValid latches this History as usable, matching the original's
// `automaton->history->valid = true` once TeslaHistory_Create succeeds.
func (h *History) MarkValid() { h.valid = true }

// Clear empties the log without releasing backing capacity.
func (h *History) Clear() { h.entries.Clear() }

// Add appends an observation of eventID with the given argument bytes
// (nil if the event carries no argument), hashing the bytes with the
// same xxhash used throughout the engine in place of the original's
// seeded MurmurHash3.
func (h *History) Add(eventID uint32, data []byte) {
	var hash uint64
	if data != nil {
		hash = xxhash.Sum64(data)
	}
	h.entries.Add(Observation{EventID: eventID, PayloadHash: hash})
}

// Len returns the number of observations recorded.
func (h *History) Len() int { return h.entries.Len() }

// At returns the observation at index i, matching the original's
// direct array access into TeslaHistory_GetObservations' returned
// buffer — used by the backward-walking linear-history verifier.
func (h *History) At(i int) Observation { return h.entries.Get(i) }

// Each calls fn for every recorded observation in order.
func (h *History) Each(fn func(int, Observation)) { h.entries.Each(fn) }
