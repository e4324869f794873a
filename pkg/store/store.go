// Package store implements the per-event parameter observation store:
// a uniform interface over a single-slot backing and a hash-table
// backing, matching the original engine's TeslaStore.c/.h.
package store

import (
	"fmt"

	"github.com/Mindburn-Labs/thintesla/pkg/teslahash"
)

// Kind selects a Store's backing.
type Kind int

const (
	Invalid Kind = iota
	HT
	Single
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case HT:
		return "ht"
	case Single:
		return "single"
	default:
		return fmt.Sprintf("store.Kind(%d)", int(k))
	}
}

// Store maps an event's observed argument bytes to the temporal tag
// (or OR-ed set of tags) under which they were observed. Argument
// bytes are carried as a Go string, the idiomatic comparable
// stand-in for an immutable byte blob used as a map/table key.
type Store struct {
	kind Kind

	ht *teslahash.Table[string]

	// single-backing fields, valid only when kind == Single.
	data string
	tag  uint64
	set  bool
}

func identityHash(s string) []byte { return []byte(s) }

// New creates a Store of the given kind. HT tables start at
// initialCapacity (rounded up by teslahash); Single stores ignore it.
// New panics on an unrecognized Kind — TeslaStore_Create's original
// bug was an unreachable assert(false) reached only because its final
// branch was missing a terminal return true; an exhaustive switch with
// a panic default keeps that branch genuinely unreachable instead of
// structurally reachable-looking (spec.md §9).
func New(kind Kind, initialCapacity int) *Store {
	switch kind {
	case HT:
		return &Store{kind: HT, ht: teslahash.New[string](initialCapacity, identityHash)}
	case Single:
		return &Store{kind: Single}
	default:
		panic(fmt.Sprintf("store: unrecognized Kind %d", int(kind)))
	}
}

// Kind reports the store's backing.
func (s *Store) Kind() Kind { return s.kind }

// SetRehashHook attaches fn to fire after every grow of an HT-backed
// store's underlying table (a no-op for a Single store, which never
// resizes). Intended for an observability layer above this package to
// subscribe to without this package importing anything beyond its own
// HT table.
func (s *Store) SetRehashHook(fn func(newCapacity int)) {
	if s.kind == HT {
		s.ht.OnRehash = fn
	}
}

// Clear empties the store without changing its Kind.
func (s *Store) Clear() {
	switch s.kind {
	case HT:
		s.ht.Clear()
	case Single:
		s.data = ""
		s.tag = 0
		s.set = false
	default:
		panic("store: Clear on invalid store")
	}
}

// Insert records that data was observed under tag.
//
// For a Single store, a first insert latches data and OR-in's tag; any
// later insert with different bytes is a correctness violation and
// panics — TeslaStore_Insert's assert(false, "Multiple values
// inserted"), preserved verbatim because SINGLE stores exist
// specifically for events statically known to carry at most one
// distinct observation per run (spec.md §9).
//
// For an HT store, insertion always probes to a fresh bucket exactly
// as TeslaHT_InsertInternal does: a second Insert of bytes already
// present in the table does not update the earlier entry's tag, it
// occupies another bucket that Get will never reach, since Get stops
// at the first matching bucket found from the hash's start index. This
// mirrors the original exactly; it is not a bug this rewrite fixes.
func (s *Store) Insert(tag uint64, data string) {
	switch s.kind {
	case HT:
		s.ht.Insert(data, tag)
	case Single:
		if !s.set {
			s.data = data
			s.tag = tag
			s.set = true
			return
		}
		if s.data != data {
			panic("store: multiple values inserted into a Single store")
		}
		s.tag |= tag
	default:
		panic("store: Insert on invalid store")
	}
}

// Get returns the temporal tag(s) observed for data, or 0 if data was
// never inserted (ambiguous with an observed tag of exactly 0, exactly
// as in the original).
//
// A Single store's Get ignores data and returns whatever tag is
// latched, exactly as TeslaStore_Get does for TESLA_STORE_SINGLE — the
// parameter is accepted only for interface symmetry with HT. This is
// sound because Insert already enforces that a Single store never
// latches more than one distinct value.
func (s *Store) Get(data string) uint64 {
	switch s.kind {
	case HT:
		return s.ht.LookupTag(data)
	case Single:
		return s.tag
	default:
		panic("store: Get on invalid store")
	}
}
