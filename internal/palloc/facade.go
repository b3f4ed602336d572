package palloc

import (
	"fmt"

	"github.com/arjenvos/pmemobj/internal/layout"
	"github.com/arjenvos/pmemobj/internal/operation"
)

// Facade is the palloc entry point consumed by the transaction runtime:
// it turns Heap's plain offset bookkeeping into redo-logged,
// crash-consistent allocate/free operations by routing every
// state-changing write through an operation.Context.
type Facade struct {
	heap *Heap
}

// NewFacade wraps heap in a Facade.
func NewFacade(heap *Heap) *Facade {
	return &Facade{heap: heap}
}

// Reserve reserves size bytes and returns an Action describing it.
// size == 0 is rejected (EINVAL).
func (f *Facade) Reserve(size uint64) (Action, error) {
	if size == 0 {
		return Action{}, fmt.Errorf("palloc: alloc(0) is invalid (EINVAL)")
	}
	return f.heap.Reserve(size)
}

// DeferFree prepares the release of an existing allocation.
func (f *Facade) DeferFree(offset uint64) (Action, error) {
	return f.heap.DeferFree(offset)
}

// SetValue stages an in-place word write at an already-reserved
// action's offset (used for storing a root pointer or a type-number
// field alongside the allocation itself, in the same redo batch).
func (f *Facade) SetValue(ctx *operation.Context, a Action, fieldOffset, value uint64) error {
	return ctx.AddEntry(a.Offset+fieldOffset, layout.EntrySet, value)
}

// Publish stages every action's effect as redo entries in ctx — a
// Set-style "mark allocated" entry for a Reserve action, a "mark free"
// entry for a DeferFree action — without touching the heap's own
// bookkeeping. The heap is updated only once ctx.Process() actually
// applies the entries (see Facade.Commit), so a transaction that
// crashes between Publish and Process leaves the heap's in-memory view
// consistent with whatever the log chain says on the next pool open.
func (f *Facade) Publish(ctx *operation.Context, actions []Action) error {
	for _, a := range actions {
		flag := uint64(1)
		if a.free {
			flag = 0
		}
		if err := ctx.AddEntry(a.Offset, layout.EntrySet, flag); err != nil {
			return err
		}
	}
	return nil
}

// Commit applies each action's bookkeeping effect to the heap. Callers
// invoke this after ctx.Process() has durably applied and flushed the
// corresponding redo entries.
func (f *Facade) Commit(actions []Action) {
	for _, a := range actions {
		f.heap.Commit(a)
	}
}

// Cancel returns every action's reservation to the heap without ever
// committing it, used when a transaction aborts before Publish.
func (f *Facade) Cancel(actions []Action) {
	for _, a := range actions {
		f.heap.Cancel(a)
	}
}

// UsableSize returns the usable size of the allocation at offset.
func (f *Facade) UsableSize(offset uint64) (uint64, bool) {
	return f.heap.UsableSize(offset)
}

// First returns the lowest allocated offset in the heap.
func (f *Facade) First() (uint64, bool) { return f.heap.First() }

// Next returns the next allocated offset after prev.
func (f *Facade) Next(prev uint64) (uint64, bool) { return f.heap.Next(prev) }

// HeapCheck walks every allocated offset and reports the count found,
// a minimal structural check standing in for the reference
// implementation's zone/chunk/run consistency walk (out of scope here,
// since that geometry was never reimplemented).
func (f *Facade) HeapCheck() int {
	n := 0
	for off, ok := f.heap.First(); ok; off, ok = f.heap.Next(off) {
		n++
	}
	return n
}
