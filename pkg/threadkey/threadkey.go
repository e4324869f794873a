// Package threadkey resolves the per-execution-context identity used
// by the registry (pkg/registry) to find or fork an automaton
// instance, matching the original engine's GetThreadKey (a cast of
// pthread_self()) in TeslaLogicPerThread.c.
//
// Go has no OS-thread-identity primitive exposed to user code — and,
// more importantly, none that would mean the right thing here. The
// original's "one instance per thread" model is really "one instance
// per concurrent execution context"; a goroutine is that context in
// Go, so a Key is derived from the calling goroutine's runtime ID
// instead of an OS thread handle.
package threadkey

import (
	"bytes"
	"runtime"
	"strconv"
)

// Key identifies a concurrent execution context. The zero Key is
// Invalid, matching TeslaThreadKey's INVALID_THREAD_KEY sentinel.
type Key uint64

// Invalid is never returned by Current.
const Invalid Key = 0

// Current returns the calling goroutine's Key by parsing the
// goroutine ID out of a small runtime.Stack capture — e.g. "goroutine
// 37 [running]:" — the same technique the pack's goroutine-identity
// tooling uses. This is a few hundred nanoseconds and one small
// allocation per call; callers on a hot path should cache the result
// for the lifetime of a single engine entry point, not call it per
// event.
func Current() Key {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		panic("threadkey: unexpected runtime.Stack format")
	}
	b = b[len(prefix):]

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		panic("threadkey: unexpected runtime.Stack format")
	}

	id, err := strconv.ParseUint(string(b[:end]), 10, 64)
	if err != nil {
		panic("threadkey: unexpected runtime.Stack format: " + err.Error())
	}

	return Key(id)
}
