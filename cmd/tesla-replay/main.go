// Command tesla-replay is the integration harness built on
// tetratelabs/wazero: it loads an automaton-description bundle with
// pkg/manifest, loads a WASM module compiled from an instrumented
// "target program" fixture, and forwards the module's imported ABI
// calls into pkg/engine, printing the final verdict.
//
// This replaces the out-of-scope LLVM instrumentation pass: instead of
// reimplementing a static analyzer, a WASM module already carries the
// instrumented call sequence and simply imports the six ABI functions
// from the "env" host module, the same way an instrumented native
// binary would import them from the TESLA runtime library.
//
// Grounded on the teacher's runtime/sandbox package for the
// RuntimeConfig/CompileModule/InstantiateModule control flow
// (sandbox.WasiSandbox.Run, sandbox.WASISandbox.Run); the host-function
// imports the ABI needs have no teacher precedent (the teacher's own
// WASM usage is WASI-only, no custom host module) and are wired
// directly against wazero's documented NewHostModuleBuilder API.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/Mindburn-Labs/thintesla/pkg/automaton"
	"github.com/Mindburn-Labs/thintesla/pkg/config"
	"github.com/Mindburn-Labs/thintesla/pkg/engine"
	"github.com/Mindburn-Labs/thintesla/pkg/manifest"
	"github.com/Mindburn-Labs/thintesla/pkg/report"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: tesla-replay <manifest-uri> <wasm-path>")
	}
	manifestURI := os.Args[1]
	wasmPath := os.Args[2]

	ctx := context.Background()

	bundle, err := manifest.Load(ctx, manifestURI, manifest.Options{})
	if err != nil {
		log.Fatalf("tesla-replay: load manifest: %v", err)
	}

	host, err := newHostState(bundle.Automata)
	if err != nil {
		log.Fatalf("tesla-replay: %v", err)
	}

	violations := 0
	eng := engine.New(config.Load(), report.Fanout{report.Halting{}, countingReporter(&violations)}, slog.Default())

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		log.Fatalf("tesla-replay: read %s: %v", wasmPath, err)
	}

	r := wazero.NewRuntime(ctx)
	defer func() { _ = r.Close(ctx) }()

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		log.Fatalf("tesla-replay: instantiate WASI: %v", err)
	}

	if err := registerABIHostModule(ctx, r, eng, host); err != nil {
		log.Fatalf("tesla-replay: register env module: %v", err)
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		log.Fatalf("tesla-replay: compile %s: %v", wasmPath, err)
	}
	defer func() { _ = compiled.Close(ctx) }()

	modCfg := wazero.NewModuleConfig().
		WithName("tesla-target").
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithStartFunctions("_start")

	mod, err := r.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		log.Fatalf("tesla-replay: run %s: %v", wasmPath, err)
	}
	defer func() { _ = mod.Close(ctx) }()

	if violations > 0 {
		fmt.Printf("tesla-replay: run complete, %d violation(s) reported\n", violations)
		os.Exit(1)
	}
	fmt.Println("tesla-replay: run complete, no violations")
}

func countingReporter(n *int) report.Reporter {
	return reporterFunc(func(v report.Violation) {
		*n++
		fmt.Fprintln(os.Stderr, report.Banner(v))
	})
}

type reporterFunc func(report.Violation)

func (f reporterFunc) Report(v report.Violation) { f(v) }

// hostState resolves the (automatonID, eventID) pairs the WASM module
// passes across the ABI boundary into the live *automaton.Automaton /
// *automaton.Event pointers pkg/engine's methods take.
type hostState struct {
	automataByID map[int]*automaton.Automaton
	eventsByID   map[int]map[int]*automaton.Event
}

func newHostState(automata []*automaton.Automaton) (*hostState, error) {
	h := &hostState{
		automataByID: make(map[int]*automaton.Automaton, len(automata)),
		eventsByID:   make(map[int]map[int]*automaton.Event, len(automata)),
	}
	for _, a := range automata {
		if _, dup := h.automataByID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate automaton id %d", a.ID)
		}
		h.automataByID[a.ID] = a
		events := make(map[int]*automaton.Event, len(a.Events))
		for _, e := range a.Events {
			events[e.ID] = e
		}
		h.eventsByID[a.ID] = events
	}
	return h, nil
}

func (h *hostState) automaton(id uint32) (*automaton.Automaton, error) {
	a, ok := h.automataByID[int(id)]
	if !ok {
		return nil, fmt.Errorf("unknown automaton id %d", id)
	}
	return a, nil
}

func (h *hostState) event(automatonID, eventID uint32) (*automaton.Automaton, *automaton.Event, error) {
	a, err := h.automaton(automatonID)
	if err != nil {
		return nil, nil, err
	}
	e, ok := h.eventsByID[int(automatonID)][int(eventID)]
	if !ok {
		return nil, nil, fmt.Errorf("unknown event id %d for automaton %d", eventID, automatonID)
	}
	return a, e, nil
}

func readMatchData(mod api.Module, ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	buf, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil
	}
	out := make([]byte, length)
	copy(out, buf)
	return out
}

// registerABIHostModule exports the six ABI entry points spec.md §6
// names as the "env" host module the instrumented WASM target imports
// from, each translating raw (automaton id, event id, data pointer)
// arguments into calls against eng.
func registerABIHostModule(ctx context.Context, r wazero.Runtime, eng *engine.Engine, h *hostState) error {
	builder := r.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, _ api.Module, automatonID uint32) {
			a, err := h.automaton(automatonID)
			if err != nil {
				log.Printf("tesla-replay: StartAutomaton: %v", err)
				return
			}
			eng.StartAutomaton(a)
		}).
		Export("tesla_start_automaton")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, automatonID, eventID, dataPtr, dataLen uint32) {
			a, e, err := h.event(automatonID, eventID)
			if err != nil {
				log.Printf("tesla-replay: UpdateAutomaton: %v", err)
				return
			}
			eng.UpdateAutomaton(a, e, readMatchData(mod, dataPtr, dataLen))
		}).
		Export("tesla_update_automaton")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, _ api.Module, automatonID, eventID uint32) {
			a, e, err := h.event(automatonID, eventID)
			if err != nil {
				log.Printf("tesla-replay: UpdateAutomatonDeterministic: %v", err)
				return
			}
			eng.UpdateAutomatonDeterministic(a, e)
		}).
		Export("tesla_update_automaton_deterministic")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, _ api.Module, automatonID, eventID uint32) {
			a, e, err := h.event(automatonID, eventID)
			if err != nil {
				log.Printf("tesla-replay: EndAutomaton: %v", err)
				return
			}
			eng.EndAutomaton(a, e)
		}).
		Export("tesla_end_automaton")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, idsPtr, idsLen uint32) {
			raw, ok := mod.Memory().Read(idsPtr, idsLen*4)
			if !ok {
				log.Printf("tesla-replay: EndLinkedAutomata: failed to read automaton id list")
				return
			}
			bases := make([]*automaton.Automaton, 0, idsLen)
			for i := uint32(0); i < idsLen; i++ {
				id := le32(raw[i*4 : i*4+4])
				a, err := h.automaton(id)
				if err != nil {
					log.Printf("tesla-replay: EndLinkedAutomata: %v", err)
					return
				}
				bases = append(bases, a)
			}
			eng.EndLinkedAutomata(bases)
		}).
		Export("tesla_end_linked_automata")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, mod api.Module, automatonID, eventID, dataPtr, dataLen uint32) {
			a, err := h.automaton(automatonID)
			if err != nil {
				log.Printf("tesla-replay: UpdateEventWithData: %v", err)
				return
			}
			eng.UpdateEventWithData(a, int(eventID), readMatchData(mod, dataPtr, dataLen))
		}).
		Export("tesla_update_event_with_data")

	_, err := builder.Instantiate(ctx)
	return err
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
