// Package pmemops defines the low-level persistence capability consumed
// by the ulog, operation, and palloc layers, and two concrete
// implementations of it: a file-backed mapping and an anonymous
// in-memory shim for tests.
package pmemops

import "unsafe"

// Flag modifies the behavior of a Memcpy/Memset/Memmove call.
type Flag uint64

const (
	// NoDrain skips the drain (fence) step; the caller will drain once
	// after a batch of persists.
	NoDrain Flag = 1 << iota
	// NoFlush skips the flush step entirely (data already flushed, or
	// the caller is operating on a non-persistent range).
	NoFlush
	// Relaxed permits a weaker ordering guarantee for the call. No
	// caller in the engine passes it, and neither implementation treats
	// it differently from no flag.
	Relaxed
	// WC requests write-combining semantics where supported.
	WC
)

// MemOps is the capability every durable write in the engine goes
// through. It mirrors libpmemobj's pmem_ops: persist = flush + drain,
// and Memcpy/Memset/Memmove persist their destination range unless
// NoFlush/NoDrain is set.
type MemOps interface {
	// Base returns the mapping's base address, used to translate
	// pool-relative offsets to pointers.
	Base() unsafe.Pointer
	// Size returns the mapped region's length in bytes.
	Size() uint64

	// Persist flushes and drains the given range: data written to it
	// before this call is durable (or, for the anonymous shim,
	// indistinguishable from durable) once it returns.
	Persist(ptr unsafe.Pointer, size uint64)
	// Flush makes the range's writes visible to the medium but does
	// not wait for them to drain.
	Flush(ptr unsafe.Pointer, size uint64)
	// Drain waits for previously flushed writes to complete.
	Drain()

	// Memcpy copies src into dst and persists dst unless flags
	// suppress it. Returns dst.
	Memcpy(dst, src unsafe.Pointer, size uint64, flags Flag) unsafe.Pointer
	// Memset fills dst with c and persists it unless flags suppress it.
	Memset(dst unsafe.Pointer, c byte, size uint64, flags Flag) unsafe.Pointer
	// Memmove is Memcpy for possibly overlapping ranges.
	Memmove(dst, src unsafe.Pointer, size uint64, flags Flag) unsafe.Pointer
}
