// Package palloc implements the allocator facade as a black box
// (reserve/publish/defer_free/cancel/first/next) backed by a
// size-class bucket allocator, deliberately simpler than a full
// zone/chunk/run geometry: the facade's operation names and semantics
// are what every caller depends on, and the bucket/free-list mechanics
// behind them are an implementation detail this package owns outright.
package palloc

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/critnib"
)

// classSizes are the size-class boundaries: powers of two from 64 bytes
// to 1MiB. A request larger than the largest class falls into the huge
// class and is satisfied directly from the arena.
var classSizes = func() []uint64 {
	sizes := make([]uint64, 0, 16)
	for s := uint64(64); s <= 1<<20; s <<= 1 {
		sizes = append(sizes, s)
	}
	return sizes
}()

// classFor returns the index of the smallest size class that fits
// size, or -1 if size needs the huge class.
func classFor(size uint64) int {
	for i, s := range classSizes {
		if size <= s {
			return i
		}
	}
	return -1
}

// Action describes a reserved-but-not-yet-published allocation or
// deallocation. The caller must either Cancel it or hand it to
// Publish, never just drop it, or the reserved memory leaks from the
// heap's point of view until the pool is reopened and First/Next
// rebuilds the free set from scratch (not implemented here: a dropped
// Action is a documented caller bug).
type Action struct {
	Offset   uint64
	Size     uint64 // usable size: the size class for a class allocation, the exact request for a huge one
	free     bool   // true for a defer_free action
	classIdx int    // -1 for huge
}

// IsFree reports whether a is a defer-free action (as opposed to a
// reservation).
func (a Action) IsFree() bool { return a.free }

// Heap is the reference bucket allocator: free offsets are tracked per
// size class, and allocated offsets are indexed in a critnib map for
// First/Next iteration and UsableSize lookups.
type Heap struct {
	mu sync.Mutex

	arenaBase uint64 // pool-relative offset where the heap's arena begins
	arenaBump uint64 // next never-before-used offset
	arenaEnd  uint64

	freeLists [][]uint64       // one free-offset stack per size class
	allocated *critnib.Critnib // offset -> *uint64 holding the allocation's size

	// persistBump mirrors a newly advanced arenaBump into the pool
	// header, so a reopen's bump allocator resumes past every offset
	// ever handed out rather than reusing live memory as fresh space.
	// The free lists themselves stay DRAM-only (see PoolHeader.ArenaBump's
	// doc comment); only the bump high-water mark needs to survive.
	persistBump func(newBump uint64)
}

// NewHeap creates a heap managing [arenaBase, arenaBase+arenaSize).
func NewHeap(arenaBase, arenaSize uint64) *Heap {
	return &Heap{
		arenaBase: arenaBase,
		arenaBump: arenaBase,
		arenaEnd:  arenaBase + arenaSize,
		freeLists: make([][]uint64, len(classSizes)),
		allocated: critnib.New(),
	}
}

// BindBumpPersistence wires fn to be called with the new arena bump
// offset every time the heap advances it. Must be called before any
// Reserve that needs to survive a reopen.
func (h *Heap) BindBumpPersistence(fn func(newBump uint64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.persistBump = fn
}

// Reserve finds space for a size-byte allocation without making it
// visible: the caller must still Publish (or Cancel) the returned
// Action. Returns ENOMEM-equivalent if the arena is exhausted and no
// free-list entry of a suitable class is available. size == 0 is
// rejected by the facade layer (facade.go), not here.
func (h *Heap) Reserve(size uint64) (Action, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := classFor(size)
	if idx < 0 {
		off, err := h.bumpLocked(size)
		if err != nil {
			return Action{}, err
		}
		return Action{Offset: off, Size: size, classIdx: -1}, nil
	}
	classSize := classSizes[idx]
	if n := len(h.freeLists[idx]); n > 0 {
		off := h.freeLists[idx][n-1]
		h.freeLists[idx] = h.freeLists[idx][:n-1]
		return Action{Offset: off, Size: classSize, classIdx: idx}, nil
	}
	off, err := h.bumpLocked(classSize)
	if err != nil {
		return Action{}, err
	}
	return Action{Offset: off, Size: classSize, classIdx: idx}, nil
}

func (h *Heap) bumpLocked(size uint64) (uint64, error) {
	if h.arenaBump+size > h.arenaEnd {
		return 0, fmt.Errorf("palloc: heap exhausted (ENOMEM)")
	}
	off := h.arenaBump
	h.arenaBump += size
	if h.persistBump != nil {
		h.persistBump(h.arenaBump)
	}
	return off, nil
}

// DeferFree prepares the release of an existing allocation at offset;
// like Reserve, it takes effect only once Published.
func (h *Heap) DeferFree(offset uint64) (Action, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sizePtr, ok := h.allocated.Get(offset)
	if !ok {
		return Action{}, fmt.Errorf("palloc: offset %d is not an allocated object", offset)
	}
	size := *(*uint64)(sizePtr)
	return Action{Offset: offset, Size: size, free: true, classIdx: classFor(size)}, nil
}

// Commit makes a reserved or deferred-free action's effect visible in
// the heap's own bookkeeping. Called by the facade only after the
// action's redo entry has been durably stored and applied (Publish),
// never before, so a crash between Reserve and Commit leaves the memory
// unreachable: the free lists live only in DRAM and a reopened heap
// resumes bump allocation past it, so nothing reclaims it (the object
// itself was never made live, since nothing pointed to it yet).
func (h *Heap) Commit(a Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a.free {
		h.allocated.Remove(a.Offset)
		if a.classIdx >= 0 {
			h.freeLists[a.classIdx] = append(h.freeLists[a.classIdx], a.Offset)
		}
		return
	}
	size := a.Size
	h.allocated.Insert(a.Offset, unsafe.Pointer(&size))
}

// Cancel returns a reserved (not-yet-committed) allocation's space to
// its free list without ever marking it live, used when a transaction
// aborts before the allocation's redo entry is applied.
func (h *Heap) Cancel(a Action) {
	if a.free {
		return // nothing to undo: DeferFree doesn't touch bookkeeping until Commit
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if a.classIdx >= 0 {
		h.freeLists[a.classIdx] = append(h.freeLists[a.classIdx], a.Offset)
	}
}

// UsableSize returns the usable size of the allocation at offset.
func (h *Heap) UsableSize(offset uint64) (uint64, bool) {
	p, ok := h.allocated.Get(offset)
	if !ok {
		return 0, false
	}
	return *(*uint64)(p), true
}

// First returns the lowest allocated offset, for heap iteration
// (heap_check, the persistent list's rebuild path).
func (h *Heap) First() (uint64, bool) {
	return h.nth(0)
}

// Next returns the next allocated offset after prev, or ok=false if
// prev was the last one.
func (h *Heap) Next(prev uint64) (uint64, bool) {
	return h.nthAfter(prev)
}

func (h *Heap) nth(n int) (uint64, bool) {
	offsets := h.allocated.Keys()
	if n >= len(offsets) {
		return 0, false
	}
	return offsets[n], true
}

func (h *Heap) nthAfter(prev uint64) (uint64, bool) {
	offsets := h.allocated.Keys()
	for _, o := range offsets {
		if o > prev {
			return o, true
		}
	}
	return 0, false
}
