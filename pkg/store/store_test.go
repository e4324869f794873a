package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_HT_InsertGet(t *testing.T) {
	s := New(HT, 4)
	s.Insert(1, "alice")
	s.Insert(2, "bob")

	assert.Equal(t, uint64(1), s.Get("alice"))
	assert.Equal(t, uint64(2), s.Get("bob"))
	assert.Equal(t, uint64(0), s.Get("carol"))
}

func TestStore_Single_LatchesAndOrs(t *testing.T) {
	s := New(Single, 1)
	s.Insert(0x1, "alice")
	s.Insert(0x2, "alice")

	assert.Equal(t, uint64(0x3), s.Get("alice"))
}

func TestStore_Single_MismatchPanics(t *testing.T) {
	s := New(Single, 1)
	s.Insert(0x1, "alice")
	assert.Panics(t, func() { s.Insert(0x2, "bob") })
}

func TestStore_New_InvalidKindPanics(t *testing.T) {
	assert.Panics(t, func() { New(Invalid, 1) })
}

func TestStore_Clear(t *testing.T) {
	s := New(HT, 4)
	s.Insert(1, "alice")
	s.Clear()
	assert.Equal(t, uint64(0), s.Get("alice"))
	require.Equal(t, HT, s.Kind())
}
