// Package ulog implements the unified log: a chain of fixed or extended
// records holding typed entries (redo "apply this value" or undo
// "restore this snapshot" entries — the log doesn't care which, that
// distinction lives in how the caller processes it). The wire format
// lives in internal/layout; the internal representation here is a Go
// sum type over it, replacing a C-style tagged union while keeping the
// wire format itself bit-compatible.
package ulog

import (
	"github.com/arjenvos/pmemobj/internal/layout"
)

// Entry is the in-memory, decoded form of one ulog record. Which fields
// are meaningful depends on Type: Value for Set/And/Or, Data for
// BufSet/BufCpy.
type Entry struct {
	Type   layout.EntryType
	Offset uint64 // pool-relative offset the entry applies to
	Value  uint64
	Data   []byte
}

// IsTerminator reports whether this decoded entry is the all-zero
// sentinel marking the end of live entries in a ulog's data region.
// Offset 0 is never a valid entry target (it falls inside the pool
// header), so an offset|type word of 0 unambiguously means "no entry
// here yet".
func (e Entry) IsTerminator() bool {
	return e.Offset == 0 && e.Type == layout.EntrySet && e.Value == 0 && len(e.Data) == 0
}

// WireSize returns the number of bytes this entry occupies on the wire.
func (e Entry) WireSize() uint64 {
	if e.Type.IsBufEntry() {
		return layout.EntrySize(e.Type, uint64(len(e.Data)))
	}
	return layout.EntrySize(e.Type, 0)
}
