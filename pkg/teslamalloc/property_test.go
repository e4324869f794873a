//go:build property
// +build property

// Package teslamalloc_test contains property-based tests for the
// allocator's alloc/free round-trip invariant, in the style of the
// teacher's pkg/kernel/addenda_property_test.go.
package teslamalloc_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/thintesla/pkg/teslamalloc"
)

// TestAllocator_DistinctPointersProperty verifies every pointer
// returned by Allocate is distinct for any number of allocations up to
// one block.
func TestAllocator_DistinctPointersProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every outstanding pointer is distinct", prop.ForAll(
		func(n int) bool {
			a, err := teslamalloc.New[int](32, nil, nil)
			if err != nil {
				return false
			}

			seen := make(map[*int]bool, n)
			for i := 0; i < n; i++ {
				p, err := a.Allocate()
				if err != nil {
					return false
				}
				if seen[p] {
					return false
				}
				seen[p] = true
			}
			return true
		},
		gen.IntRange(1, 32),
	))

	properties.TestingRun(t)
}

// TestAllocator_RoundTripProperty verifies that freeing every
// outstanding pointer lets the allocator reallocate exactly that many
// elements without growing past the freed set's size.
func TestAllocator_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("alloc/free/alloc round-trips without growth", prop.ForAll(
		func(n int) bool {
			a, err := teslamalloc.New[int](32, nil, nil)
			if err != nil {
				return false
			}
			lenBefore := a.Len()

			ptrs := make([]*int, 0, n)
			for i := 0; i < n; i++ {
				p, err := a.Allocate()
				if err != nil {
					return false
				}
				ptrs = append(ptrs, p)
			}
			for _, p := range ptrs {
				a.Free(p)
			}
			lenAfterFree := a.Len()
			if lenAfterFree != lenBefore {
				return false
			}

			for i := 0; i < n; i++ {
				if _, err := a.Allocate(); err != nil {
					return false
				}
			}
			return a.Len() == lenBefore
		},
		gen.IntRange(1, 32),
	))

	properties.TestingRun(t)
}
