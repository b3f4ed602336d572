// Package layout defines the on-media structures of a pool file: the
// pool header, the ulog header, and ulog entry headers. Structs here
// are laid out to be read directly off a memory-mapped region via
// unsafe.Pointer. Every struct carries a compile-time size assertion:
// `var _ [N]byte = [unsafe.Sizeof(T{})]byte{}`.
package layout

import (
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/constants"
)

// PoolHeader is the fixed-size header at offset 0 of every pool file.
type PoolHeader struct {
	Signature   [8]byte
	LayoutName  [constants.MaxLayoutNameLen + 1]byte
	PoolSize    uint64
	FormatMajor uint32
	_pad0       uint32
	UUID        [16]byte
	RootOffset  uint64
	RunID       uint64
	// ArenaBump is the heap's next never-before-used offset, persisted
	// so a reopen can resume bump allocation past everything already
	// handed out. The reference allocator's free lists are DRAM-only
	// (see internal/palloc.Heap) and are not reconstructed on reopen;
	// ArenaBump alone is enough to guarantee Open never reuses live
	// data as fresh heap space, at the cost of not reclaiming freed
	// space across a reopen — a documented limitation of the reference
	// allocator, not of the crash-consistency core it sits on.
	ArenaBump uint64
	Checksum  uint64
	_reserved [constants.ReservedZoneSize - 8 - (constants.MaxLayoutNameLen + 1) - 8 - 4 - 4 - 16 - 8 - 8 - 8 - 8]byte
}

var _ [constants.ReservedZoneSize]byte = [unsafe.Sizeof(PoolHeader{})]byte{}

// HeaderSize is the byte offset at which the first lane begins.
const HeaderSize = constants.ReservedZoneSize

// SetSignature stamps the fixed pool signature into the header.
func (h *PoolHeader) SetSignature() {
	copy(h.Signature[:], constants.PoolSignature)
}

// SignatureValid reports whether the header carries the expected
// signature bytes.
func (h *PoolHeader) SignatureValid() bool {
	return string(h.Signature[:]) == constants.PoolSignature
}

// SetLayout copies name into the fixed layout-name field, truncating
// (never silently, callers must pre-validate) to MaxLayoutNameLen bytes
// plus the trailing NUL.
func (h *PoolHeader) SetLayout(name string) {
	for i := range h.LayoutName {
		h.LayoutName[i] = 0
	}
	copy(h.LayoutName[:constants.MaxLayoutNameLen], name)
}

// Layout returns the NUL-terminated layout name as a Go string.
func (h *PoolHeader) Layout() string {
	n := 0
	for n < len(h.LayoutName) && h.LayoutName[n] != 0 {
		n++
	}
	return string(h.LayoutName[:n])
}
