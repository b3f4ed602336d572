package layout

import (
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/constants"
)

// UlogFlag bits stored in UlogHeader.Flags.
type UlogFlag uint64

const (
	// UlogUserOwned marks a ulog whose backing memory was supplied by
	// the caller (log_append_buffer) rather than allocated from the
	// heap.
	UlogUserOwned UlogFlag = 1 << 0
)

// UlogHeader is the fixed 64-byte (one cache line) header preceding
// every ulog's entry data: checksum, next, capacity, gen_num, flags,
// and a reserved-must-be-zero pad filling out the cache line.
type UlogHeader struct {
	Checksum uint64
	Next     uint64
	Capacity uint64
	GenNum   uint64
	Flags    uint64
	Unused   [3]uint64
}

var _ [constants.UlogHeaderSize]byte = [unsafe.Sizeof(UlogHeader{})]byte{}

// UlogAt reinterprets the memory at ptr as a *UlogHeader.
func UlogAt(ptr unsafe.Pointer) *UlogHeader {
	return (*UlogHeader)(ptr)
}

// Data returns a pointer to the entry data following the header.
func (h *UlogHeader) Data() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h), constants.UlogHeaderSize)
}

// ChecksumRegion returns the byte range the checksum covers: everything
// in the header after the checksum field itself, plus the live portion
// of the data region (the first usedBytes bytes).
func (h *UlogHeader) ChecksumRegion(usedBytes uint64) []byte {
	start := unsafe.Add(unsafe.Pointer(h), 8) // skip Checksum field
	n := constants.UlogHeaderSize - 8 + usedBytes
	return unsafe.Slice((*byte)(start), int(n))
}
