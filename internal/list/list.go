// Package list implements the persistent doubly-linked list used to
// chain allocations of the same type together, e.g. for iterating
// every live object of a given type number across a pool reopen.
// Every pointer update goes through an operation.Context so a crash
// mid-splice leaves the list in either its pre- or post-splice state,
// never a torn one.
package list

import (
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/layout"
	"github.com/arjenvos/pmemobj/internal/operation"
)

// Resolver translates between pool-relative offsets and addresses,
// reusing the same contract ulog.Resolver uses.
type Resolver interface {
	ToPtr(offset uint64) unsafe.Pointer
	ToOffset(ptr unsafe.Pointer) uint64
}

// Entry is the prev/next pair embedded in each list-linked object,
// addressed by the offset of its first (Next) field; Prev follows
// immediately after it.
type Entry struct {
	Next uint64
	Prev uint64
}

// List is a handle onto a persistent doubly-linked list rooted at a
// head offset (the offset of the head's own Entry, typically embedded
// in a type's object-list head structure).
type List struct {
	res      Resolver
	headOff  uint64 // offset of the list head's Entry
}

// At returns a handle for the list rooted at headOffset.
func At(headOffset uint64, res Resolver) *List {
	return &List{res: res, headOff: headOffset}
}

func (l *List) entryAt(off uint64) *Entry {
	return (*Entry)(l.res.ToPtr(off))
}

// InsertAfter splices newOff's Entry (located at newEntryOff) in after
// afterOff's Entry, updating all three affected pointers (afterOff's
// Next, the old next's Prev, and newOff's own Next/Prev) as redo
// entries in ctx, so the splice commits atomically with the rest of the
// transaction.
func (l *List) InsertAfter(ctx *operation.Context, afterOff, newEntryOff uint64) error {
	after := l.entryAt(afterOff)
	oldNext := after.Next

	if err := ctx.AddEntry(newEntryOff+offsetOfNext, layout.EntrySet, oldNext); err != nil {
		return err
	}
	if err := ctx.AddEntry(newEntryOff+offsetOfPrev, layout.EntrySet, afterOff); err != nil {
		return err
	}
	if err := ctx.AddEntry(afterOff+offsetOfNext, layout.EntrySet, newEntryOff); err != nil {
		return err
	}
	if oldNext != 0 {
		if err := ctx.AddEntry(oldNext+offsetOfPrev, layout.EntrySet, newEntryOff); err != nil {
			return err
		}
	}
	return nil
}

// Remove splices the Entry at entryOff out of the list, relinking its
// neighbors, as redo entries in ctx.
func (l *List) Remove(ctx *operation.Context, entryOff uint64) error {
	e := l.entryAt(entryOff)
	prev, next := e.Prev, e.Next

	if prev != 0 {
		if err := ctx.AddEntry(prev+offsetOfNext, layout.EntrySet, next); err != nil {
			return err
		}
	}
	if next != 0 {
		if err := ctx.AddEntry(next+offsetOfPrev, layout.EntrySet, prev); err != nil {
			return err
		}
	}
	return nil
}

// Foreach walks the list starting at the entry after the head,
// invoking cb with each member's entry offset. cb returns false to stop
// early.
func (l *List) Foreach(cb func(entryOff uint64) bool) {
	off := l.entryAt(l.headOff).Next
	for off != 0 {
		if !cb(off) {
			return
		}
		off = l.entryAt(off).Next
	}
}

const (
	offsetOfNext = 0 // Entry.Next is the struct's first field
	offsetOfPrev = 8 // Entry.Prev immediately follows it
)
