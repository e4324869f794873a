package threadkey

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent_NeverInvalid(t *testing.T) {
	assert.NotEqual(t, Invalid, Current())
}

func TestCurrent_StableWithinGoroutine(t *testing.T) {
	assert.Equal(t, Current(), Current())
}

func TestCurrent_DistinctAcrossGoroutines(t *testing.T) {
	const n = 8
	keys := make([]Key, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			keys[i] = Current()
		}(i)
	}
	wg.Wait()

	seen := make(map[Key]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "goroutine key reused: %d", k)
		seen[k] = true
	}
}
