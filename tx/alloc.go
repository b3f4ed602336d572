package tx

import "github.com/arjenvos/pmemobj"

// Alloc reserves a new, zeroed (or alloc-pattern-filled, see
// debug.heap.alloc_pattern) object of size bytes. The allocation
// becomes visible to other transactions only once Commit durably
// applies it; an Abort (or a crash before Commit finishes) leaves the
// space unused. A failing Reserve is routed through the current
// frame's failure behavior like any other transactional operation.
func (t *Tx) Alloc(size uint64) (pmemobj.OID, error) {
	a, err := t.pool.Alloc().Reserve(size)
	if err != nil {
		return pmemobj.Null, t.onOpError(pmemobj.WrapError("tx.Alloc", err))
	}
	t.pool.Ops().Memset(t.pool.ToPtr(a.Offset), t.pool.AllocFillByte(), a.Size, 0)
	t.actions = append(t.actions, a)
	return pmemobj.OID{PoolUUIDLo: t.pool.UUIDLo(), Off: a.Offset}, nil
}

// Free stages the release of oid. The object stays reachable through
// any still-live references until Commit applies the free; Abort
// leaves it allocated.
func (t *Tx) Free(oid pmemobj.OID) error {
	if oid.IsNull() {
		return nil
	}
	a, err := t.pool.Alloc().DeferFree(oid.Offset())
	if err != nil {
		return t.onOpError(pmemobj.WrapError("tx.Free", err))
	}
	t.actions = append(t.actions, a)
	return nil
}
