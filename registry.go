package pmemobj

import (
	"sync"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/critnib"
)

// poolRegistry lets an OID or a raw pointer be resolved back to its
// owning Pool without the caller already holding that *Pool value —
// needed once an OID can travel outside the scope that allocated it
// (stored inside another pool's object, passed across goroutines that
// only exchange OIDs). Every Create/Open registers its pool here, by
// uuidLo and by the base address of its memory mapping; Close
// unregisters it.
var poolRegistry = struct {
	mu     sync.RWMutex
	byUUID *critnib.Critnib
	byAddr *critnib.Critnib
}{
	byUUID: critnib.New(),
	byAddr: critnib.New(),
}

func registerPool(p *Pool) {
	poolRegistry.mu.Lock()
	defer poolRegistry.mu.Unlock()
	poolRegistry.byUUID.Insert(p.uuidLo, unsafe.Pointer(p))
	poolRegistry.byAddr.Insert(uint64(uintptr(p.ops.Base())), unsafe.Pointer(p))
}

func unregisterPool(p *Pool) {
	poolRegistry.mu.Lock()
	defer poolRegistry.mu.Unlock()
	poolRegistry.byUUID.Remove(p.uuidLo)
	poolRegistry.byAddr.Remove(uint64(uintptr(p.ops.Base())))
}

// PoolByUUID resolves a pool_uuid_lo to its *Pool, if it's currently
// open in this process.
func PoolByUUID(uuidLo uint64) (*Pool, bool) {
	poolRegistry.mu.RLock()
	defer poolRegistry.mu.RUnlock()
	v, ok := poolRegistry.byUUID.Get(uuidLo)
	if !ok {
		return nil, false
	}
	return (*Pool)(v), true
}

// PoolByPtr resolves ptr to the pool that owns it and the OID
// addressing it, by finding the open pool whose mapping base is the
// largest one not exceeding ptr's address and checking ptr still falls
// within that pool's mapped size. ok is false if ptr doesn't fall
// inside any pool currently open in this process.
func PoolByPtr(ptr unsafe.Pointer) (pool *Pool, oid OID, ok bool) {
	poolRegistry.mu.RLock()
	defer poolRegistry.mu.RUnlock()
	addr := uint64(uintptr(ptr))
	_, v, found := poolRegistry.byAddr.FindLE(addr)
	if !found {
		return nil, Null, false
	}
	p := (*Pool)(v)
	base := uint64(uintptr(p.ops.Base()))
	if addr >= base+p.hdr.PoolSize {
		return nil, Null, false
	}
	return p, OID{PoolUUIDLo: p.uuidLo, Off: addr - base}, true
}

// Direct resolves oid to a process address by looking up its owning
// pool in the process-wide registry, for a caller holding only the OID
// (e.g. one read out of another pool's object) rather than the *Pool it
// came from. The null OID resolves to nil, as does an OID whose pool
// isn't currently open.
func Direct(oid OID) unsafe.Pointer {
	if oid.IsNull() {
		return nil
	}
	p, ok := PoolByUUID(oid.PoolUUIDLo)
	if !ok {
		return nil
	}
	return p.ToPtr(oid.Off)
}
