package teslamalloc

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/Mindburn-Labs/thintesla/pkg/teslavector"
)

// fullBitmap marks a shard with all 16 slots allocated.
const fullBitmap = 0xFFFF

// shard is a contiguous run of shardSize elements plus a 16-bit
// allocation bitmap and a free-list successor pointer. Blocks chain
// their shards' free pointers in LIFO order on creation, matching
// TeslaAllocator_LinkBlock.
type shard[T any] struct {
	bitmap uint16
	elems  [shardSize]T
	next   *shard[T] // next shard with a free slot, nil if none
}

// block is a fixed run of shards allocated together.
type block[T any] struct {
	shards []shard[T]
}

// Allocator is a fixed-element-size block pool. It is not safe for
// concurrent use without external synchronization — in the original
// engine each automaton instance, and the per-event stores it owns,
// are touched by exactly one thread at a time (spec.md §5), so the
// allocator backing them never needs its own locking.
type Allocator[T any] struct {
	elementsPerBlock int
	numShards        int

	blocks        *teslavector.Vector[*block[T]]
	nextFreeShard *shard[T]

	// index recovers a shard (and slot) from a previously returned
	// pointer. The original C allocator recovers this by pointer
	// arithmetic plus an MRU-block cache with scan fallback
	// (TeslaAllocator_GetBlockForElem); Go has no safe pointer
	// arithmetic over a bare *T; a direct index is the straightforward
	// substitute, and like the MRU cache it costs nothing on the
	// allocate path and only matters on Free.
	index map[*T]slot[T]

	arena  Arena
	logger *slog.Logger
}

type slot[T any] struct {
	sh  *shard[T]
	pos int
}

// New creates an allocator for elements of type T, elementsPerBlock
// rounded up to a multiple of 16 as in TeslaAllocator_Create.
func New[T any](elementsPerBlock int, arena Arena, logger *slog.Logger) (*Allocator[T], error) {
	if elementsPerBlock <= 0 {
		panic("teslamalloc: elementsPerBlock must be > 0")
	}
	if arena == nil {
		arena = DynamicArena{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	if elementsPerBlock%shardSize != 0 {
		elementsPerBlock += shardSize - (elementsPerBlock % shardSize)
	}

	a := &Allocator[T]{
		elementsPerBlock: elementsPerBlock,
		numShards:        elementsPerBlock / shardSize,
		blocks:           teslavector.New[*block[T]](),
		index:            make(map[*T]slot[T]),
		arena:            arena,
		logger:           logger,
	}

	if err := a.allocateBlock(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Allocator[T]) allocateBlock() error {
	var zero T
	blockBytes := a.numShards * (2 + shardSize*int(unsafe.Sizeof(zero)))
	if err := a.arena.Reserve(blockBytes); err != nil {
		return err
	}

	b := &block[T]{shards: make([]shard[T], a.numShards)}
	for i := range b.shards[:len(b.shards)-1] {
		b.shards[i].next = &b.shards[i+1]
	}

	a.blocks.Add(b)
	a.nextFreeShard = &b.shards[0]

	a.logger.Debug("teslamalloc: grew pool by one block",
		slog.Int("shards", a.numShards),
		slog.String("size", humanize.Bytes(uint64(blockBytes))))

	return nil
}

// Allocate returns a pointer to a fresh, zero-valued T in O(1), or
// ErrArenaExhausted if the backing Arena's budget has been exceeded.
// Callers must treat a non-nil error as a correctness-degrading event
// (spec.md §7 kind 2), not a fatal one.
func (a *Allocator[T]) Allocate() (*T, error) {
	sh := a.nextFreeShard
	if sh == nil {
		if err := a.allocateBlock(); err != nil {
			return nil, err
		}
		sh = a.nextFreeShard
	}

	idx := firstZeroBit(sh.bitmap)
	sh.bitmap |= 1 << idx

	if sh.bitmap == fullBitmap {
		a.nextFreeShard = sh.next
		sh.next = nil
	}

	elem := &sh.elems[idx]
	a.index[elem] = slot[T]{sh: sh, pos: idx}

	var zero T
	*elem = zero

	return elem, nil
}

// Free returns p to the pool. It panics (a debug-assertion-class
// engine invariant violation, spec.md §7 kind 3) if p was not
// currently allocated from this allocator — the original's
// DEBUG_ASSERT(bitmap != 0) only checked "shard not fully empty";
// spec.md §9 calls that out as too coarse, so this checks the specific
// bit for the freed slot instead.
func (a *Allocator[T]) Free(p *T) {
	s, ok := a.index[p]
	if !ok {
		panic(fmt.Sprintf("teslamalloc: Free of pointer %p not owned by this allocator", p))
	}

	bit := uint16(1) << s.pos
	if s.sh.bitmap&bit == 0 {
		panic("teslamalloc: double free")
	}
	wasFull := s.sh.bitmap == fullBitmap
	s.sh.bitmap &^= bit

	delete(a.index, p)

	// Only a shard that was full is off the free list; any other shard
	// is already on it and must not be linked in a second time.
	if wasFull {
		s.sh.next = a.nextFreeShard
		a.nextFreeShard = s.sh
	}
}

// Len returns the number of blocks currently owned, for diagnostics.
func (a *Allocator[T]) Len() int { return a.blocks.Len() }

func firstZeroBit(bitmap uint16) int {
	for i := 0; i < shardSize; i++ {
		if bitmap&(1<<i) == 0 {
			return i
		}
	}
	panic("teslamalloc: firstZeroBit called on full bitmap")
}
