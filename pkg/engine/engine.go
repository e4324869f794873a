// Package engine implements the six ABI entry points instrumentation
// calls into (C8), matching the original engine's TeslaLogic.c /
// TeslaLogicPerThread.c / TeslaLogicLinearHistory.c function-for-
// function: StartAutomaton, UpdateAutomaton, UpdateAutomatonDeterministic,
// EndAutomaton, EndLinkedAutomata and UpdateEventWithData.
package engine

import (
	"bytes"
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/config"
	"github.com/Mindburn-Labs/thintesla/pkg/observability"
	"github.com/Mindburn-Labs/thintesla/pkg/registry"
	"github.com/Mindburn-Labs/thintesla/pkg/report"
	"github.com/Mindburn-Labs/thintesla/pkg/verifier"
)

// Engine dispatches the six ABI calls for every automaton linked
// against it. One Engine instance is shared by every base Automaton
// in a process, exactly as the original's functions carry no instance
// state of their own beyond the automaton/event records passed in.
type Engine struct {
	Config   *config.Config
	Reporter report.Reporter
	Logger   *slog.Logger

	// Observability is optional; a nil value disables all metric
	// recording. The engine only increments counters (transitions,
	// violations, hash-table rehashes) and opens no spans; the counts
	// never feed back into engine decisions.
	Observability *observability.Provider
}

// New builds an Engine. A nil Config loads one from the environment;
// a nil Reporter defaults to report.Halting{}.
func New(cfg *config.Config, reporter report.Reporter, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.Load()
	}
	if reporter == nil {
		reporter = report.Halting{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Config: cfg, Reporter: reporter, Logger: logger}
}

func (e *Engine) recordTransition(base *automaton.Automaton) {
	if e.Observability == nil {
		return
	}
	e.Observability.RecordTransition(context.Background(), attribute.String("automaton", base.Name))
}

// resolveForEvent implements GET_THREAD_AUTOMATON_IF_ENABLED: resolve
// the calling goroutine's instance, running LateInit resolution if
// configured, and return nil if the instance isn't live. The second
// argument to registry.GetThreadAutomaton is base's already-forked
// instance, which doubles as "the" instance for non-thread-local
// automata exactly as the original's GetThreadAutomaton early-returns
// the automaton pointer itself when !isThreadLocal (instance and base
// are the same C struct there; here they're split, so the shared
// Instance fills that role).
func (e *Engine) resolveForEvent(base *automaton.Automaton, event *automaton.Event) *automaton.Instance {
	inst, ok := registry.GetThreadAutomaton(base, base.InstancesHead())
	if e.Config.LateInit {
		if !ok || inst == nil {
			inst = e.lateInit(base, nil, event)
		} else if !inst.IsInit {
			inst = e.lateInit(base, inst, event)
		}
	}

	if inst == nil || !inst.IsActive || inst.HasFailed {
		return nil
	}
	return inst
}

// lateInit implements LateInitAutomaton: deferred Init only fires for
// an initial or assertion event, matching the original's guard that a
// rewrite should keep (see DESIGN.md — the "LateInitAutomaton
// fallthrough" Open Question).
func (e *Engine) lateInit(base *automaton.Automaton, inst *automaton.Instance, event *automaton.Event) *automaton.Instance {
	if !event.Flags.IsInitial && !event.Flags.IsAssertion {
		return nil
	}
	if inst == nil {
		inst = registry.Fork(base, e.Logger)
	}
	if !inst.IsInit {
		inst.Init(e.Logger)
		e.attachRehashHooks(inst)
	}
	return inst
}

// attachRehashHooks wires pkg/observability's rehash counter into every
// HT-backed event store freshly created by Init, a no-op when
// Observability is unset.
func (e *Engine) attachRehashHooks(inst *automaton.Instance) {
	if e.Observability == nil {
		return
	}
	name := inst.Base.Name
	for i := range inst.EventStates {
		st := inst.EventStates[i].Store
		if st == nil {
			continue
		}
		st.SetRehashHook(func(newCapacity int) {
			e.Observability.RecordRehash(context.Background(), name, newCapacity)
		})
	}
}

// StartAutomaton resolves (forking if necessary) the calling
// goroutine's instance and, unless LateInit is configured, initializes
// it immediately — matching GenerateAndInitAutomaton's unconditional
// call from StartAutomaton outside LATE_INIT builds.
func (e *Engine) StartAutomaton(base *automaton.Automaton) *automaton.Instance {
	if e.Config.LateInit {
		return nil
	}
	inst := registry.Fork(base, e.Logger)
	if inst.IsInit {
		// A second StartAutomaton without an intervening EndAutomaton is
		// tolerated as a no-op re-resolve (spec §8 boundary behavior).
		return inst
	}
	inst.Init(e.Logger)
	e.attachRehashHooks(inst)
	return inst
}

// reportFailure implements AUTOMATON_FAIL_MESSAGE_RETURN: record the
// failure on inst, then either reset (linked groups resolve failure at
// EndLinkedAutomata) or hand off to the Reporter. Under LateInit the
// Reporter call is skipped entirely — failures are buffered until
// EndAutomaton, matching the original's compile-time branch.
func (e *Engine) reportFailure(inst *automaton.Instance, message string) {
	inst.HasFailed = true
	inst.IsActive = false
	inst.FailReason = message

	if inst.Base.Flags.IsLinked {
		registry.Reset(inst)
		return
	}

	if e.Config.LateInit {
		return
	}

	if e.Observability != nil {
		e.Observability.RecordViolation(context.Background(), inst.Base.Name, message)
	}

	e.Reporter.Report(report.Violation{
		AutomatonName: inst.Base.Name,
		RunID:         inst.RunID.String(),
		Message:       message,
	})
}

// runVerifier dispatches to the tag or linear-history verifier per
// Config.LinearHistory and reports any violation. Unlike the two
// direct failure sites in updateDeterministic, a verifier failure here
// does not abort the caller — matching the original, where
// VerifyAutomaton/VerifyAutomatonLinearHistory fail (and macro-return)
// from their own void-returning scope, after which
// UpdateAutomatonDeterministicGeneric keeps running and still sets
// reachedAssertion := true.
func (e *Engine) runVerifier(inst *automaton.Instance, event *automaton.Event) {
	var err error
	if e.Config.LinearHistory {
		err = verifier.VerifyHistory(inst, event.ID)
	} else {
		err = verifier.VerifyTags(inst)
	}
	if err == nil {
		return
	}
	msg := err.Error()
	if v, ok := verifier.AsViolation(err); ok {
		msg = v.Message
	}
	e.reportFailure(inst, msg)
}

// EndAutomaton resolves the thread instance and, if the run reached
// its assertion, advances once more with finalEvent and checks the
// landing event is final — matching EndAutomaton's body exactly,
// including its LateInit-only buffered-failure replay at the top.
func (e *Engine) EndAutomaton(base *automaton.Automaton, finalEvent *automaton.Event) {
	inst, ok := registry.GetThreadAutomaton(base, base.InstancesHead())
	if !ok || inst == nil {
		return
	}

	if e.Config.LateInit && inst.HasFailed {
		e.Reporter.Report(report.Violation{
			AutomatonName: inst.Base.Name,
			RunID:         inst.RunID.String(),
			Message:       inst.FailReason,
		})
	}

	if inst.IsActive && inst.ReachedAssertion {
		e.updateDeterministic(inst, finalEvent, true)

		if inst.CurrentEvent == nil || !inst.CurrentEvent.IsFinal() {
			e.Reporter.Report(report.Violation{
				AutomatonName: inst.Base.Name,
				RunID:         inst.RunID.String(),
				Message:       "Automaton has reached the final temporal bound but is not in a final state",
			})
		}
	}

	if !base.Flags.IsLinked {
		registry.Reset(inst)
	}
}

// EndLinkedAutomata implements the single-winner policy for a linked
// group: every member that reached a final event is considered to
// have succeeded, with xorMode (always false — the original never
// flips its own const) rejecting more than one winner, and the whole
// group failing if nobody won.
func (e *Engine) EndLinkedAutomata(bases []*automaton.Automaton) {
	const xorMode = false

	oneSucceeded := false

	for _, base := range bases {
		inst, ok := registry.GetThreadAutomaton(base, base.InstancesHead())
		if !ok || inst == nil || !inst.IsActive {
			continue
		}
		if inst.HasFailed && e.Config.LateInit {
			continue
		}

		if inst.CurrentEvent != nil && inst.CurrentEvent.IsFinal() {
			if xorMode && oneSucceeded {
				e.Reporter.Report(report.Violation{AutomatonName: inst.Base.Name, RunID: inst.RunID.String()})
			}
			oneSucceeded = true
			registry.Reset(inst)
		}
	}

	if !oneSucceeded && len(bases) > 0 {
		base := bases[0]
		inst, ok := registry.GetThreadAutomaton(base, base.InstancesHead())
		name := base.Name
		runID := ""
		if ok && inst != nil {
			runID = inst.RunID.String()
		}
		e.Reporter.Report(report.Violation{AutomatonName: name, RunID: runID})
	}
}

// UpdateEventWithData records eventID's parameter bytes in place
// without advancing automaton state — used when an assertion's
// argument is only known at the assertion site itself. Deliberately
// does not touch History (see DESIGN.md's Open Question resolution):
// the original's body is a single memcpy, nothing else.
func (e *Engine) UpdateEventWithData(base *automaton.Automaton, eventID int, data []byte) {
	inst, ok := registry.GetThreadAutomaton(base, base.InstancesHead())
	if !ok || inst == nil {
		return
	}
	st := &inst.EventStates[eventID]
	copy(st.MatchData, data)
}

func matchData(data []byte, state *automaton.EventState) bool {
	return bytes.Equal(data, state.MatchData)
}
