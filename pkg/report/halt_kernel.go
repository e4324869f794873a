//go:build kernel

package report

import "log/slog"

// Halting under the kernel build tag matches TeslaAssertionFailMessage's
// _KERNEL branch: the fprintf banner and the assert(false) panic are
// both compiled out entirely (spec §6: "host kernel panic and
// stderr-less warnings" — the halt itself is expected to come from
// the host environment, not this call). All this Reporter does is
// leave a structured trail for whatever kernel-side log sink is
// listening.
type Halting struct{}

func (Halting) Report(v Violation) {
	slog.Error("tesla: assertion failed", slog.String("automaton", v.AutomatonName), slog.String("reason", v.Message))
}
