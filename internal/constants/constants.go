// Package constants holds sizing and layout constants shared across the
// engine, fixing the on-media layout so the wire format stays
// predictable across pool opens.
package constants

// CachelineSize is the alignment boundary for ulog headers and entries.
const CachelineSize = 64

// UlogHeaderSize is the fixed ulog header layout: checksum, next,
// capacity, gen_num, flags (5 x 8 bytes) plus a reserved-must-be-zero
// pad to a full cache line.
const UlogHeaderSize = CachelineSize

// SizeofAlignedUlog returns the allocation size for a continuation ulog
// with the given payload capacity: header + payload + one cache line of
// alignment slack for the allocator to round the data pointer up to.
func SizeofAlignedUlog(capacityBytes uint64) uint64 {
	return UlogHeaderSize + capacityBytes + CachelineSize
}

// Entry header sizes (see ulog_entry_val / ulog_entry_buf).
const (
	EntryValSize    = 16 // offset|type (8) + value (8)
	EntryBufHdrSize = 24 // offset|type (8) + checksum (8) + size (8)
)

// Per-entry and per-buffer bookkeeping overhead used by the max-size
// estimators in tx/userbuf.go.
const (
	EntryOverhead  = EntryBufHdrSize // conservative: worst case is a buffer entry
	BufferOverhead = CachelineSize   // sizeof(ulog header)
)

// Lane layout. LaneTotalSize must equal the sum of the three ulog
// allocations (header + payload) below: 3*64 + 128 + 576 + 1984 = 2880.
const (
	// LaneJump is the distance in 8-byte words between lanes assigned to
	// different threads, chosen to avoid false sharing of cache lines.
	LaneJump = CachelineSize / 8

	// LanePrimaryAttempts bounds how many times a thread retries its
	// primary lane before it picks a new one.
	LanePrimaryAttempts = 128

	LaneTotalSize        = 2880
	InternalUlogCapacity = 192 - UlogHeaderSize  // 128 bytes payload
	ExternalUlogCapacity = 640 - UlogHeaderSize  // 576 bytes payload
	UndoUlogCapacity     = 2048 - UlogHeaderSize // 1984 bytes payload
)

func init() {
	total := 3*UlogHeaderSize + InternalUlogCapacity + ExternalUlogCapacity + UndoUlogCapacity
	if total != LaneTotalSize {
		panic("constants: lane ulog sizes do not sum to LaneTotalSize")
	}
}

// Byte offsets of each of a lane's three ulogs, relative to the lane's
// own base offset.
const (
	LaneInternalOffset = 0
	LaneExternalOffset = UlogHeaderSize + InternalUlogCapacity
	LaneUndoOffset     = LaneExternalOffset + UlogHeaderSize + ExternalUlogCapacity
)

// OBJNlanesMax is the hard cap on the lane count; lane.Boot rejects
// more.
const OBJNlanesMax = 1024

// MergeWindowSize is the capacity of the operation context's merge FIFO
// used to coalesce repeated entries at the same offset within one
// transaction before they are flushed to the ulog.
const MergeWindowSize = 64

// ShadowGrowthIncrement is the byte increment the DRAM shadow log grows
// by when an operation context outgrows its current allocation.
const ShadowGrowthIncrement = 1024

// Pool header / descriptor layout.
const (
	PoolSignature    = "PMEMOBJ\x00"
	PoolFormatMajor  = 6
	MaxLayoutNameLen = 1023
	ReservedZoneSize = 2048
)

// Environment variable names. Nothing in the engine reads them.
const (
	EnvConf     = "PMEMOBJ_CONF"
	EnvConfFile = "PMEMOBJ_CONF_FILE"
	EnvNlanes   = "PMEMOBJ_NLANES"
)

// MaxConfFileSize bounds how much of PMEMOBJ_CONF_FILE will be read.
const MaxConfFileSize = 1 << 20
