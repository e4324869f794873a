// Package teslahash implements an open-addressed, linear-probing hash
// table mapping a fixed-shape key to a 63-bit temporal tag, matching
// the original engine's TeslaHashTable.c. It backs the HT arm of a
// per-event Store (pkg/store), which is the kind Instance.Init gives
// every non-deterministic event.
package teslahash

import (
	"github.com/cespare/xxhash/v2"
)

const (
	loadFactorResize = 0.75
	defaultCapacity  = 8
)

// bucket holds one slot of the table. full distinguishes "never used"
// from "used and holds tag 0" — the original packs this into the
// header's 64th bit alongside a 63-bit tag; ordinary struct fields do
// the same job without the bitfield.
type bucket[K comparable] struct {
	key  K
	tag  uint64
	full bool
}

// Table is a linear-probing hash table from K to a 63-bit tag. It is
// not safe for concurrent use, matching the rest of the engine's
// per-thread ownership model (spec.md §5).
//
// K must be comparable so that collision resolution can use Go's
// built-in equality instead of the original's memcmp over a raw byte
// blob; Hash must be a stable, order-independent encoding of K into
// the bytes xxhash sums — callers own this mapping the same way the
// original caller owned dataSize and the raw bytes passed to Hash64.
type Table[K comparable] struct {
	buckets []bucket[K]
	size    int
	hash    func(K) []byte

	// OnRehash, if set, is called after every grow with the table's new
	// capacity — the hook pkg/observability's rehash counter attaches
	// to, keeping this package itself free of any metrics dependency.
	OnRehash func(newCapacity int)
}

// New returns an empty table with the given initial capacity (rounded
// up to defaultCapacity if smaller). hash must encode a key into the
// bytes used for hashing; it need not be injective, only stable.
func New[K comparable](initialCapacity int, hash func(K) []byte) *Table[K] {
	if initialCapacity < defaultCapacity {
		initialCapacity = defaultCapacity
	}
	return &Table[K]{
		buckets: make([]bucket[K], initialCapacity),
		hash:    hash,
	}
}

// Len returns the number of entries currently stored.
func (t *Table[K]) Len() int { return t.size }

// Clear empties the table without shrinking its backing array.
func (t *Table[K]) Clear() {
	for i := range t.buckets {
		t.buckets[i] = bucket[K]{}
	}
	t.size = 0
}

func (t *Table[K]) sum(key K) uint64 {
	return xxhash.Sum64(t.hash(key))
}

// Insert adds key->tag, growing the table first if it is already at
// capacity and again afterward if the resulting load factor exceeds
// 0.75 — matching TeslaHT_InsertInternal's two resize checks.
func (t *Table[K]) Insert(key K, tag uint64) {
	if t.size == len(t.buckets) {
		t.grow(len(t.buckets) * 2)
	}

	t.insertInternal(key, tag)

	if float64(t.size) > loadFactorResize*float64(len(t.buckets)) {
		t.grow(len(t.buckets) * 2)
	}
}

// insertInternal places key->tag via linear probing without consulting
// the load factor — used both by Insert and by grow's rehash, where
// resizing mid-rehash would recurse (the original's allowResizing=false).
func (t *Table[K]) insertInternal(key K, tag uint64) {
	idx := int(t.sum(key) % uint64(len(t.buckets)))
	for t.buckets[idx].full {
		idx = (idx + 1) % len(t.buckets)
	}
	t.buckets[idx] = bucket[K]{key: key, tag: tag, full: true}
	t.size++
}

// LookupTag returns the tag associated with key, or 0 if key has never
// been inserted. A zero tag is ambiguous with "absent" exactly as in
// the original (TeslaHT_LookupTag returns 0 on a miss); callers that
// need to distinguish the two must reserve tag 0 as a sentinel, which
// is how the engine's temporal tags are allocated (an observed tag
// always has at least one epoch bit set, so the value 0 never names an
// epoch).
func (t *Table[K]) LookupTag(key K) uint64 {
	idx := int(t.sum(key) % uint64(len(t.buckets)))
	for t.buckets[idx].full {
		if t.buckets[idx].key == key {
			return t.buckets[idx].tag
		}
		idx = (idx + 1) % len(t.buckets)
	}
	return 0
}

func (t *Table[K]) grow(newCapacity int) {
	old := t.buckets
	t.buckets = make([]bucket[K], newCapacity)
	t.size = 0
	for _, b := range old {
		if b.full {
			t.insertInternal(b.key, b.tag)
		}
	}

	if t.OnRehash != nil {
		t.OnRehash(newCapacity)
	}
}
