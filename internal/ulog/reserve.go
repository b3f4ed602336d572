package ulog

import (
	"errors"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/layout"
)

// ErrNoSpace is returned by Store when an entry does not fit in this
// record's remaining capacity; the caller (the operation context) is
// responsible for extending the chain and retrying.
var ErrNoSpace = errors.New("ulog: record has no space for entry")

// Store appends entry at byte offset off within this record's data
// region, writes it durably, and updates the record's checksum to cover
// the new live range. It does not advance off across records; callers
// use Reserve to find out whether the entry fits first.
func (l *Log) Store(off uint64, e Entry) error {
	size := e.WireSize()
	if off+size > l.hdr.Capacity {
		return ErrNoSpace
	}
	ptr := unsafe.Add(l.hdr.Data(), off)
	word := layout.PackOffsetType(e.Offset, e.Type)
	if e.Type.IsBufEntry() {
		bh := layout.EntryBufHeaderAt(ptr)
		bh.OffsetType = word
		bh.Size = uint64(len(e.Data))
		copy(unsafe.Slice((*byte)(bh.Payload()), len(e.Data)), e.Data)
		bh.Checksum = checksumBytes(unsafe.Slice((*byte)(bh.Payload()), len(e.Data)))
		l.ops.Persist(ptr, size)
	} else {
		v := layout.EntryValAt(ptr)
		v.OffsetType = word
		v.Value = e.Value
		l.ops.Persist(ptr, size)
	}
	l.UpdateChecksum(off + size)
	return nil
}

// Reserve reports whether an entry of size bytes fits at byte offset
// off within this record.
func (l *Log) Reserve(off, size uint64) bool {
	return off+size <= l.hdr.Capacity
}

func checksumBytes(b []byte) uint64 {
	h := uint64(0xcbf29ce484222325)
	for _, c := range b {
		h ^= uint64(c)
		h *= 0x100000001b3
	}
	return h
}
