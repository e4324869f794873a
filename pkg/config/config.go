// Package config loads the six compile-time switches of the original
// engine's Makefile (spec.md §6) as runtime fields, the way the
// teacher's own pkg/config turns environment variables into a plain
// struct: no flag-parsing library, no viper, just os.Getenv with
// defaults.
package config

import (
	"os"
	"strconv"
)

// Config mirrors spec.md §6's table: LateInit, LinearHistory,
// GuidelineMode, Kernel, StaticStorage and Release are the original's
// #ifdef switches turned into booleans decided once at process start
// (not per-call, matching how a single build of the C library bakes
// them in).
type Config struct {
	LateInit      bool
	LinearHistory bool
	GuidelineMode bool
	Kernel        bool
	StaticStorage bool
	Release       bool

	// ArenaBytes is the budget for a bump-allocated arena (50 MiB by
	// default). Load reads it, StaticStorage, Kernel and Release from the
	// environment, but no other package of this module reads these four
	// fields: pkg/teslamalloc's StaticArena takes its budget as an
	// argument to NewStaticArena.
	ArenaBytes uint64
}

const defaultArenaBytes uint64 = 50 * 1024 * 1024

// Load reads Config from the environment. Kernel builds default
// StaticStorage to true, matching spec.md §6's note that it is "the
// kernel default"; every other switch defaults to false, matching the
// original's unmodified (non-#ifdef'd) behavior.
func Load() *Config {
	kernel := envBool("TESLA_KERNEL", false)

	return &Config{
		LateInit:      envBool("TESLA_LATE_INIT", false),
		LinearHistory: envBool("TESLA_LINEAR_HISTORY", false),
		GuidelineMode: envBool("TESLA_GUIDELINE_MODE", false),
		Kernel:        kernel,
		StaticStorage: envBool("TESLA_USE_STATIC_STORAGE", kernel),
		Release:       envBool("TESLA_RELEASE", false),
		ArenaBytes:    envUint64("TESLA_ARENA_BYTES", defaultArenaBytes),
	}
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envUint64(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
