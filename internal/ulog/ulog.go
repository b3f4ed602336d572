package ulog

import (
	"hash/crc32"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/constants"
	"github.com/arjenvos/pmemobj/internal/layout"
	"github.com/arjenvos/pmemobj/internal/pmemops"
)

// Resolver translates between pool-relative offsets and process
// addresses within a mapped pool. The ulog package never talks to a
// pool directly; it is handed one of these so it stays testable against
// a bare pmemops.MemOps.
type Resolver interface {
	ToPtr(offset uint64) unsafe.Pointer
	ToOffset(ptr unsafe.Pointer) uint64
}

// Log is a handle onto one ulog record (the first of possibly several
// chained via Next).
type Log struct {
	hdr *layout.UlogHeader
	ops pmemops.MemOps
	res Resolver
}

// At returns a Log handle for the ulog header located at ptr.
func At(ptr unsafe.Pointer, ops pmemops.MemOps, res Resolver) *Log {
	return &Log{hdr: layout.UlogAt(ptr), ops: ops, res: res}
}

// Construct initializes a fresh ulog header in place: zeroes the flags
// and generation-appropriate fields, stamps the capacity, and persists
// the header. genNum distinguishes this incarnation of the record from
// whatever previously occupied this memory (ulog.h's gen_num field),
// letting a recovering reader detect a torn write across reuse.
func Construct(ptr unsafe.Pointer, ops pmemops.MemOps, capacity, genNum uint64, flags layout.UlogFlag) *layout.UlogHeader {
	h := layout.UlogAt(ptr)
	h.Next = 0
	h.Capacity = capacity
	h.GenNum = genNum
	h.Flags = uint64(flags)
	ops.Memset(h.Data(), 0, capacity, 0)
	h.Checksum = computeChecksum(h, 0)
	ops.Persist(ptr, constants.UlogHeaderSize+capacity)
	return h
}

func computeChecksum(h *layout.UlogHeader, usedBytes uint64) uint64 {
	return uint64(crc32.ChecksumIEEE(h.ChecksumRegion(usedBytes)))
}

// Header returns the underlying wire header.
func (l *Log) Header() *layout.UlogHeader { return l.hdr }

// Capacity returns this record's payload capacity in bytes.
func (l *Log) Capacity() uint64 { return l.hdr.Capacity }

// CapacityTotal returns the combined payload capacity of this record
// and every record chained after it via Next.
func (l *Log) CapacityTotal() uint64 {
	total := l.hdr.Capacity
	n := l.Next()
	for n != nil {
		total += n.hdr.Capacity
		n = n.Next()
	}
	return total
}

// Next returns the chained continuation record, or nil if this is the
// last record in the chain.
func (l *Log) Next() *Log {
	if l.hdr.Next == 0 {
		return nil
	}
	return At(l.res.ToPtr(l.hdr.Next), l.ops, l.res)
}

// SetNext links next as this record's continuation, persists the
// pointer update and refreshes the record's checksum, which covers the
// Next field. next may be nil to truncate the chain.
func (l *Log) SetNext(next *Log) {
	var off uint64
	if next != nil {
		off = l.res.ToOffset(unsafe.Pointer(next.hdr))
	}
	l.hdr.Next = off
	l.ops.Persist(unsafe.Pointer(&l.hdr.Next), 8)
	l.UpdateChecksum(l.UsedBytes())
}

// Check recomputes and validates this record's checksum against
// usedBytes of live payload, reporting whether it matches the stored
// value.
func (l *Log) Check(usedBytes uint64) bool {
	return computeChecksum(l.hdr, usedBytes) == l.hdr.Checksum
}

// UpdateChecksum recomputes and persists the checksum over usedBytes of
// live payload. Called after appending entries or clobbering the log.
func (l *Log) UpdateChecksum(usedBytes uint64) {
	l.hdr.Checksum = computeChecksum(l.hdr, usedBytes)
	l.ops.Persist(unsafe.Pointer(&l.hdr.Checksum), 8)
}

// Clobber zeroes this record's live data region and bumps its checksum,
// invalidating any entries it held without needing to walk them. Used
// when ULOG_FREE_AFTER_FIRST recovery discards a record wholesale.
func (l *Log) Clobber() {
	l.ops.Memset(l.hdr.Data(), 0, l.hdr.Capacity, 0)
	l.UpdateChecksum(0)
}

// ClobberData zeroes only the first 8 bytes of the data region: enough
// to invalidate the terminator check without the cost of a full-record
// memset, used when a ulog is being immediately reused for a new set of
// entries of sufficient length to run past byte 8.
func (l *Log) ClobberData() {
	l.ops.Memset(l.hdr.Data(), 0, 8, 0)
}
