// Package manifest loads a serialized automaton-description bundle —
// the static topology of events, successors, and flags that
// pkg/automaton consumes — from a local path or a remote s3:// / gs://
// URI, validating and hashing it before it is ever trusted.
package manifest

import (
	"fmt"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
)

// EventDescription is the JSON-serializable form of automaton.Event.
// Successors are expressed as indexes into the enclosing Description's
// Events slice rather than pointers, matching the wire format an
// instrumenter actually emits.
type EventDescription struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Successors    []int  `json:"successors,omitempty"`
	MatchDataSize int    `json:"match_data_size"`

	IsDeterministic   bool `json:"is_deterministic"`
	IsAssertion       bool `json:"is_assertion"`
	IsOR              bool `json:"is_or"`
	IsOptional        bool `json:"is_optional"`
	IsInitial         bool `json:"is_initial"`
	IsFinal           bool `json:"is_final"`
	IsBeforeAssertion bool `json:"is_before_assertion"`
}

// AutomatonDescription is the JSON-serializable form of automaton.Automaton.
type AutomatonDescription struct {
	ID     int                `json:"id"`
	Name   string             `json:"name"`
	Events []EventDescription `json:"events"`

	IsDeterministic bool `json:"is_deterministic"`
	IsThreadLocal   bool `json:"is_thread_local"`
	IsLinked        bool `json:"is_linked"`
}

// Description is the top-level bundle an instrumenter emits: one or
// more automata sharing an engine_abi compatibility declaration, plus
// the signature that proves provenance for remotely-fetched bundles.
type Description struct {
	EngineABI string                 `json:"engine_abi"`
	Automata  []AutomatonDescription `json:"automata"`
	Signature string                 `json:"signature,omitempty"`
}

// Build converts every AutomatonDescription in d into a live
// *automaton.Automaton, resolving successor indexes into pointers —
// the loader-side counterpart of the instrumenter's static topology
// emission.
func (d *Description) Build() ([]*automaton.Automaton, error) {
	out := make([]*automaton.Automaton, 0, len(d.Automata))
	for _, ad := range d.Automata {
		a, err := ad.build()
		if err != nil {
			return nil, fmt.Errorf("manifest: build automaton %q: %w", ad.Name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (ad *AutomatonDescription) build() (*automaton.Automaton, error) {
	events := make([]*automaton.Event, len(ad.Events))
	for i, ed := range ad.Events {
		events[i] = &automaton.Event{
			ID:            ed.ID,
			Name:          ed.Name,
			MatchDataSize: ed.MatchDataSize,
			Flags: automaton.EventFlags{
				IsDeterministic:   ed.IsDeterministic,
				IsAssertion:       ed.IsAssertion,
				IsOR:              ed.IsOR,
				IsOptional:        ed.IsOptional,
				IsInitial:         ed.IsInitial,
				IsFinal:           ed.IsFinal,
				IsBeforeAssertion: ed.IsBeforeAssertion,
			},
		}
	}

	for i, ed := range ad.Events {
		for _, succ := range ed.Successors {
			if succ < 0 || succ >= len(events) {
				return nil, fmt.Errorf("event %q: successor index %d out of range", ed.Name, succ)
			}
			events[i].Successors = append(events[i].Successors, events[succ])
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("automaton %q: no events", ad.Name)
	}

	return &automaton.Automaton{
		ID:    ad.ID,
		Name:  ad.Name,
		Events: events,
		Flags: automaton.AutomatonFlags{
			IsDeterministic: ad.IsDeterministic,
			IsThreadLocal:   ad.IsThreadLocal,
			IsLinked:        ad.IsLinked,
		},
	}, nil
}
