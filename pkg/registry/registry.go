// Package registry implements the per-thread instance registry (C6):
// a lock-free singly linked list of per-thread clones of a base
// automaton, matching the original engine's TeslaLogicPerThread.c.
package registry

import (
	"log/slog"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/threadkey"
)

// GetThreadAutomaton implements GetThreadAutomatonAndLast: walk base's
// instance chain for one already claimed by the calling goroutine.
// Non-thread-local automata have no chain at all — the base's single
// instance is shared by every caller, matching GetThreadAutomaton's
// early return when !isThreadLocal.
func GetThreadAutomaton(base *automaton.Automaton, shared *automaton.Instance) (*automaton.Instance, bool) {
	if !base.Flags.IsThreadLocal {
		return shared, true
	}

	key := threadkey.Current()
	for inst := base.InstancesHead(); inst != nil; inst = inst.Next() {
		if inst.ThreadKey() == key {
			return inst, true
		}
	}
	return nil, false
}

// Fork resolves the per-thread instance for base, creating one if
// none exists yet: first look for an already-owned instance: then for
// a freed (threadKey == Invalid) instance to reclaim via CAS; then
// allocate a brand new instance and CAS-append it to the chain —
// matching ForkAutomaton's three-phase protocol in
// TeslaLogicPerThread.c exactly, including its "somebody was faster,
// retry" CAS-loss handling.
func Fork(base *automaton.Automaton, logger *slog.Logger) *automaton.Instance {
	if logger == nil {
		logger = slog.Default()
	}

	if !base.Flags.IsThreadLocal {
		head := base.InstancesHead()
		if head != nil {
			return head
		}
		newInst := automaton.NewInstance(base)
		newInst.TryClaim(threadkey.Current())
		if base.CASInstancesHead(nil, newInst) {
			return newInst
		}
		// Lost the race to install the first (and only) shared
		// instance; whoever won is authoritative.
		return base.InstancesHead()
	}

	key := threadkey.Current()

	for {
		if inst, ok := GetThreadAutomaton(base, nil); ok {
			return inst
		}

		if claimed := tryReclaimFreeSlot(base, key); claimed != nil {
			return claimed
		}

		newInst := automaton.NewInstance(base)
		if appendAndClaim(base, newInst, key) {
			logger.Debug("registry: forked new instance",
				slog.String("automaton", base.Name),
				slog.String("run_id", newInst.RunID.String()))
			return newInst
		}
		// Lost the append race; loop back and look again — the winner's
		// instance (or a subsequent free slot) will now be visible.
	}
}

// tryReclaimFreeSlot implements GetUnusedAutomaton followed by the CAS
// claim: scan for any instance whose threadKey is Invalid and claim it
// with a single CAS. Returns nil if none was found or the CAS lost.
func tryReclaimFreeSlot(base *automaton.Automaton, key threadkey.Key) *automaton.Instance {
	for inst := base.InstancesHead(); inst != nil; inst = inst.Next() {
		if inst.ThreadKey() == threadkey.Invalid {
			if inst.TryClaim(key) {
				return inst
			}
			// Somebody else claimed it first; keep scanning rather than
			// retrying this same slot.
		}
	}
	return nil
}

// appendAndClaim claims newInst for key, then CAS-appends it to the
// tail of base's chain. Returns false if the append lost a race to a
// concurrent appender (newInst is discarded by the caller).
func appendAndClaim(base *automaton.Automaton, newInst *automaton.Instance, key threadkey.Key) bool {
	newInst.TryClaim(key)

	head := base.InstancesHead()
	if head == nil {
		return base.CASInstancesHead(nil, newInst)
	}

	tail := head
	for {
		next := tail.Next()
		if next == nil {
			return tail.CASNext(newInst)
		}
		tail = next
	}
}

// Reset returns inst to base's free pool.
func Reset(inst *automaton.Instance) { inst.Reset() }
