package lane

import (
	"fmt"
	"sync/atomic"

	"github.com/arjenvos/pmemobj/internal/constants"
)

// LaneInfo is a caller-owned handle tracking which lane a given caller
// (a goroutine processing one transaction, typically) prefers to reuse.
// Callers create one with NewLaneInfo and keep it for as long as they
// intend to keep acquiring lanes from the same Descriptor — e.g. stored
// on a worker goroutine's own stack, not in any global registry.
type LaneInfo struct {
	primary         uint64
	primaryAttempts int
}

// NewLaneInfo returns a fresh handle with no primary-lane preference
// yet; the first Hold call picks one.
func NewLaneInfo() *LaneInfo {
	return &LaneInfo{primary: ^uint64(0)}
}

// Descriptor owns the fixed set of lanes available at runtime and the
// per-lane acquisition locks.
type Descriptor struct {
	lanes   []*Lane
	locks   []atomic.Bool
	nextIdx atomic.Uint64
}

// Boot initializes a descriptor over an already-constructed slice of
// lanes (their ulog chains are expected to already exist in the pool;
// Boot only wires up the runtime acquisition bookkeeping).
func Boot(lanes []*Lane) (*Descriptor, error) {
	if len(lanes) == 0 {
		return nil, fmt.Errorf("lane: boot requires at least one lane")
	}
	if len(lanes) > constants.OBJNlanesMax {
		return nil, fmt.Errorf("lane: %d lanes exceeds maximum of %d", len(lanes), constants.OBJNlanesMax)
	}
	return &Descriptor{
		lanes: lanes,
		locks: make([]atomic.Bool, len(lanes)),
	}, nil
}

// NumLanes returns the number of lanes available at runtime.
func (d *Descriptor) NumLanes() int { return len(d.lanes) }

// Hold acquires a lane for info's caller, preferring info's previously
// successful primary lane, and returns it along with a release
// function the caller must invoke exactly once (typically via defer)
// when done. If the primary lane can't be acquired within
// LanePrimaryAttempts tries, a new primary is chosen.
func (d *Descriptor) Hold(info *LaneInfo) (idx int, l *Lane, release func(), err error) {
	n := uint64(len(d.lanes))

	if info.primary < n && d.locks[info.primary].CompareAndSwap(false, true) {
		info.primaryAttempts = 0
		i := int(info.primary)
		return i, d.lanes[i], d.releaseFn(i), nil
	}

	info.primaryAttempts++
	if info.primaryAttempts >= constants.LanePrimaryAttempts || info.primary >= n {
		info.primary = d.nextIdx.Add(1) % n
		info.primaryAttempts = 0
		if d.locks[info.primary].CompareAndSwap(false, true) {
			i := int(info.primary)
			return i, d.lanes[i], d.releaseFn(i), nil
		}
	}

	// Primary busy and attempts not yet exhausted: scan for any free
	// lane so the caller doesn't block behind one contended lane.
	start := d.nextIdx.Add(1) % n
	for j := uint64(0); j < n; j++ {
		i := (start + j) % n
		if d.locks[i].CompareAndSwap(false, true) {
			return int(i), d.lanes[i], d.releaseFn(int(i)), nil
		}
	}
	return 0, nil, nil, fmt.Errorf("lane: all %d lanes busy", n)
}

func (d *Descriptor) releaseFn(i int) func() {
	return func() { d.locks[i].Store(false) }
}
