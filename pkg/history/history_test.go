package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AddAndWalk(t *testing.T) {
	h := New()
	require.False(t, h.Valid())
	h.MarkValid()
	require.True(t, h.Valid())

	h.Add(1, []byte("a"))
	h.Add(2, nil)
	h.Add(3, []byte("a"))

	require.Equal(t, 3, h.Len())

	assert.Equal(t, uint32(1), h.At(0).EventID)
	assert.Equal(t, uint32(2), h.At(1).EventID)
	assert.Equal(t, uint64(0), h.At(1).PayloadHash)
	assert.Equal(t, h.At(0).PayloadHash, h.At(2).PayloadHash, "same bytes must hash identically")
}

func TestHistory_Clear(t *testing.T) {
	h := New()
	h.Add(1, nil)
	h.Clear()
	assert.Equal(t, 0, h.Len())
}

func TestHistory_Each(t *testing.T) {
	h := New()
	h.Add(1, nil)
	h.Add(2, nil)

	var ids []uint32
	h.Each(func(i int, o Observation) { ids = append(ids, o.EventID) })
	assert.Equal(t, []uint32{1, 2}, ids)
}
