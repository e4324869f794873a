// Package automaton defines the static automaton/event topology and
// the mutable per-execution instance state, matching the original
// engine's TeslaState.h/.c split between read-only topology and the
// state an individual run carries.
package automaton

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/thintesla/pkg/history"
	"github.com/Mindburn-Labs/thintesla/pkg/store"
	"github.com/Mindburn-Labs/thintesla/pkg/threadkey"
)

// EventFlags mirrors the original TeslaEventFlags bitfield, expanded
// to the full set the ABI layout in spec §6 names (isEnd joins the
// data-model's isFinal as the same concept: a successor-less event,
// or one explicitly marked as the automaton's terminal state in
// GUIDELINE_MODE).
type EventFlags struct {
	IsDeterministic   bool
	IsAssertion       bool
	IsOR              bool
	IsOptional        bool
	IsInitial         bool
	IsFinal           bool
	IsBeforeAssertion bool
}

// Event is a node in an automaton's static topology: read-only after
// construction except for the per-instance EventState array kept
// alongside each Instance.
type Event struct {
	ID            int
	Name          string
	Successors    []*Event
	Flags         EventFlags
	MatchDataSize int // 0 for a purely deterministic event
}

// successorIndex returns the index of target within e's successor
// list, or -1 if not found — the Go replacement for the original's
// GetSuccessor linear scan (succ(e, f)).
func (e *Event) successorIndex(target *Event) int {
	for i, s := range e.Successors {
		if s == target {
			return i
		}
	}
	return -1
}

// HasSuccessor reports whether target directly follows e.
func (e *Event) HasSuccessor(target *Event) bool {
	return e.successorIndex(target) >= 0
}

// AutomatonFlags mirrors the original TeslaAutomatonFlags.
type AutomatonFlags struct {
	IsDeterministic bool
	IsThreadLocal   bool
	IsLinked        bool
}

// Automaton is the static, read-only-after-construction topology
// shared by every per-thread Instance. It also owns the per-thread
// instance chain's head, matching spec.md §9's note that "the per-base
// linked list head is effectively a global for that base" — the base
// automaton record is the handle that owns the list, for its entire
// program lifetime.
type Automaton struct {
	ID    int
	Name  string
	Flags AutomatonFlags
	Events []*Event

	instances atomic.Pointer[Instance]
}

// Events[0] is always the initial event by construction (spec.md §3).
func (a *Automaton) initialEvent() *Event { return a.Events[0] }

func (a *Automaton) finalEvent() *Event { return a.Events[len(a.Events)-1] }

// InstancesHead returns the head of this automaton's per-thread
// instance chain (nil if none has ever forked), for use by
// pkg/registry.
func (a *Automaton) InstancesHead() *Instance { return a.instances.Load() }

// CASInstancesHead implements the single atomic "append to tail"
// operation used only when the chain is currently empty; pkg/registry
// performs all subsequent appends by CASing an existing node's Next.
func (a *Automaton) CASInstancesHead(old, new *Instance) bool {
	return a.instances.CompareAndSwap(old, new)
}

// EventState is the mutable, per-instance state parallel to a static
// Event: the last observed parameter bytes and where epoch tags for
// that event are recorded.
//
// The original reuses a deterministic event's store pointer slot as a
// raw temporal-tag bitfield via a pointer cast (spec.md §9,
// "Pointer-tag reuse"); that note explicitly says a rewrite should add
// a real field instead, so DeterministicTag is a dedicated uint64
// rather than a reinterpreted pointer.
type EventState struct {
	MatchData        []byte
	Store            *store.Store // nil for a deterministic event
	DeterministicTag uint64       // valid only when the event is deterministic
}

// Instance is one per-thread, per-execution-context run of an
// automaton: the mutable state the original calls
// TeslaAutomatonState, plus the bookkeeping (ThreadKey, Next,
// EventStates, History) the original folds into the same
// TeslaAutomaton struct as its static fields.
type Instance struct {
	Base *Automaton

	// RunID distinguishes successive lifetimes of the same instance
	// slot across Reset/reuse, purely for diagnostics (slog output and
	// violation reports) — the original has no equivalent since it
	// never logs beyond ad hoc printf calls gated by debug macros.
	RunID uuid.UUID

	threadKey atomic.Uint64 // threadkey.Key; threadkey.Invalid (0) means free
	next      atomic.Pointer[Instance]

	CurrentEvent     *Event
	LastEvent        *Event
	CurrentTemporalTag uint64

	IsActive         bool
	IsInit           bool
	ReachedAssertion bool
	HasFailed        bool
	FailReason       string
	IsCorrect        bool

	EventStates []EventState
	History     *history.History // non-nil only under LINEAR_HISTORY
}

// ThreadKey returns the key currently claiming this instance slot,
// or threadkey.Invalid if the slot is free.
func (i *Instance) ThreadKey() threadkey.Key { return threadkey.Key(i.threadKey.Load()) }

// TryClaim attempts the CAS INVALID -> key that pkg/registry performs
// when reusing a freed slot or racing to claim a freshly appended one.
func (i *Instance) TryClaim(key threadkey.Key) bool {
	return i.threadKey.CompareAndSwap(uint64(threadkey.Invalid), uint64(key))
}

// Next returns the next instance in this automaton's per-thread chain.
func (i *Instance) Next() *Instance { return i.next.Load() }

// CASNext implements the chain-append CAS: claim the tail by swinging
// its Next from nil to newInst.
func (i *Instance) CASNext(newInst *Instance) bool {
	return i.next.CompareAndSwap(nil, newInst)
}

// NewInstance allocates a fresh instance for base, copying its static
// fields and allocating per-event state, matching ForkAutomaton's
// "allocate a new instance" path in TeslaLogicPerThread.c. The caller
// (pkg/registry) is responsible for claiming threadKey and appending
// it to the chain.
func NewInstance(base *Automaton) *Instance {
	inst := &Instance{
		Base: base,
		RunID: uuid.New(),
	}
	if !base.Flags.IsDeterministic {
		inst.EventStates = make([]EventState, len(base.Events))
		for idx, e := range base.Events {
			if !e.Flags.IsDeterministic {
				inst.EventStates[idx].MatchData = make([]byte, e.MatchDataSize)
			}
		}
	}
	return inst
}

// Init resets an instance to the beginning-of-run state, matching
// TA_InitCommon: point at events[0], mark active and initialized, and
// start the temporal tag at epoch 0 (bit 0 set — "beginning of time").
// Per-event stores for non-deterministic events are created lazily
// here, defaulting to an HT store with initial capacity 10, exactly as
// the original always does (spec.md §9 notes SINGLE exists but is
// never wired up by default).
func (i *Instance) Init(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	i.CurrentEvent = i.Base.initialEvent()
	i.LastEvent = i.CurrentEvent
	i.IsActive = true
	i.IsInit = true
	i.CurrentTemporalTag = 1
	i.IsCorrect = true

	if i.Base.Flags.IsDeterministic {
		return
	}

	for idx, e := range i.Base.Events {
		if e.Flags.IsDeterministic {
			continue
		}
		if i.EventStates[idx].Store == nil {
			i.EventStates[idx].Store = store.New(store.HT, 10)
		} else {
			i.EventStates[idx].Store.Clear()
		}
	}

	logger.Debug("automaton: instance initialized",
		slog.String("automaton", i.Base.Name),
		slog.String("run_id", i.RunID.String()))
}

// Reset returns an instance to the free pool: clears per-event stores
// (and History, if latched valid) for non-deterministic automata, and
// writes threadKey last so the slot only becomes reclaimable once
// every other field has settled — matching TA_Reset's ordering.
func (i *Instance) Reset() {
	i.CurrentEvent = nil
	i.LastEvent = nil
	i.CurrentTemporalTag = 0
	i.ReachedAssertion = false
	i.HasFailed = false
	i.FailReason = ""
	i.IsCorrect = false

	if !i.Base.Flags.IsDeterministic {
		for idx, e := range i.Base.Events {
			if e.Flags.IsDeterministic {
				i.EventStates[idx].Store = nil
				i.EventStates[idx].DeterministicTag = 0
				continue
			}
			if i.EventStates[idx].Store != nil {
				i.EventStates[idx].Store.Clear()
			}
		}
		if i.History != nil && i.History.Valid() {
			i.History.Clear()
		}
	}

	i.IsInit = false
	i.IsActive = false
	i.threadKey.Store(uint64(threadkey.Invalid))
}

// IsFinal reports whether e is the automaton's terminal event —
// either by position (no successors) or by explicit IsFinal flag.
func (e *Event) IsFinal() bool {
	return e.Flags.IsFinal || len(e.Successors) == 0
}

// LogState writes a structured debug snapshot of the instance,
// replacing the original's ad hoc DebugAutomaton/DebugEvent printf
// helpers gated behind ENABLE_THREAD_DEBUG.
func (i *Instance) LogState(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("automaton: state",
		slog.String("automaton", i.Base.Name),
		slog.String("run_id", i.RunID.String()),
		slog.Int("current_event", eventID(i.CurrentEvent)),
		slog.Int("last_event", eventID(i.LastEvent)),
		slog.String("temporal_tag", fmt.Sprintf("0x%x", i.CurrentTemporalTag)),
		slog.Bool("reached_assertion", i.ReachedAssertion),
		slog.Bool("has_failed", i.HasFailed),
	)
}

func eventID(e *Event) int {
	if e == nil {
		return -1
	}
	return e.ID
}
