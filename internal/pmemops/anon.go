package pmemops

import "unsafe"

// Anon is a non-persistent MemOps backed by a plain byte slice. It is
// used for tests and for pools that explicitly opt out of crash
// persistence. Flush/Drain are no-ops; Persist degenerates to a copy
// already being visible in DRAM. Like FileMapping it adds no locking
// of its own: the pool already serializes writers through lanes, so no
// additional locking belongs at this layer.
type Anon struct {
	data []byte
}

// NewAnon allocates an anonymous region of the given size.
func NewAnon(size uint64) *Anon {
	return &Anon{data: make([]byte, size)}
}

func (a *Anon) Base() unsafe.Pointer { return unsafe.Pointer(&a.data[0]) }
func (a *Anon) Size() uint64         { return uint64(len(a.data)) }

func (a *Anon) Flush(ptr unsafe.Pointer, size uint64) {}
func (a *Anon) Drain()                                {}
func (a *Anon) Persist(ptr unsafe.Pointer, size uint64) {}

func (a *Anon) Memcpy(dst, src unsafe.Pointer, size uint64, flags Flag) unsafe.Pointer {
	return rawMemcpy(dst, src, size)
}

func (a *Anon) Memset(dst unsafe.Pointer, c byte, size uint64, flags Flag) unsafe.Pointer {
	return rawMemset(dst, c, size)
}

func (a *Anon) Memmove(dst, src unsafe.Pointer, size uint64, flags Flag) unsafe.Pointer {
	return rawMemmove(dst, src, size)
}
