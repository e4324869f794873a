// Package teslamalloc implements a fixed-element-size block allocator,
// matching the original engine's TeslaAllocator.c: O(1) alloc/free
// with zero fragmentation for uniform objects, backed by blocks of
// 16-element shards each tracked by a single allocation bitmap.
//
// Go's garbage collector removes the need for TeslaAllocator's packed
// {bitmap:16, nextShardPtr:48} header trick (spec.md §9 "Pointer-tag
// reuse" explicitly calls that trade not worth preserving); the shard
// and block bookkeeping below uses ordinary struct fields instead,
// while keeping the shard/bitmap/free-list algorithm unchanged.
package teslamalloc

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/thintesla/pkg/teslavector"
)

// shardSize is the fixed number of elements per shard, matching the
// original's SHARD_NUM_ELEMS.
const shardSize = 16

// ErrArenaExhausted is returned by a bounded Arena backend (used under
// TESLA_USE_STATIC_STORAGE / the kernel build) once its byte budget is
// spent. Callers must treat this as a correctness-degrading event, not
// a fatal error: the owning automaton instance is marked possibly
// incorrect (spec.md §7 kind 2) and execution continues.
var ErrArenaExhausted = errors.New("teslamalloc: arena exhausted")

// Arena backs the creation of new blocks. The default backend never
// fails (ordinary Go heap allocation); StaticArena bounds total bytes
// handed out and fails once exhausted, modelling TeslaMallocStatic.c's
// bump allocator.
type Arena interface {
	// Reserve requests n bytes of backing capacity for a new block. It
	// need not actually allocate anything itself — blocks are plain Go
	// values — but it must return ErrArenaExhausted once the arena's
	// budget (if any) is spent.
	Reserve(n int) error
}

// DynamicArena never fails; it models ordinary heap allocation.
type DynamicArena struct{}

func (DynamicArena) Reserve(int) error { return nil }

// StaticArena bounds total reserved bytes to Bytes, matching
// TESLA_USE_STATIC_STORAGE's fixed arena (50 MiB by default in the
// kernel build). It is a pure bump counter: Go's GC still owns the
// actual memory, StaticArena only enforces the budget.
type StaticArena struct {
	Bytes     int64
	used      int64
	Logger    *slog.Logger
	limiter   *rate.Limiter
	limitOnce bool
}

// NewStaticArena returns an arena bounded to budgetBytes, logging at
// most once per second when exhaustion is hit (so a hot allocation
// loop against an exhausted arena degrades precision, not log volume).
func NewStaticArena(budgetBytes int64, logger *slog.Logger) *StaticArena {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticArena{
		Bytes:   budgetBytes,
		Logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (a *StaticArena) Reserve(n int) error {
	if a.used+int64(n) > a.Bytes {
		if a.limiter.Allow() {
			a.Logger.Warn("teslamalloc: static arena exhausted, instance may be incorrect",
				slog.Int64("budget_bytes", a.Bytes), slog.Int64("used_bytes", a.used))
		}
		return ErrArenaExhausted
	}
	a.used += int64(n)
	return nil
}
