package tx

import (
	"unsafe"

	"github.com/arjenvos/pmemobj"
)

// Realloc changes the size of the allocation at oid, preserving the
// lesser of its old and new size's worth of leading bytes and
// zero-filling any newly added tail, as one transaction: a fresh
// allocation is reserved, the preserved prefix is copied into it, and
// the old allocation is deferred-freed, all staged the same way Alloc
// and Free stage their own actions. newSize == 0 frees oid and returns
// Null, matching realloc(3)'s convention; a Null oid behaves like
// Alloc(newSize).
func (t *Tx) Realloc(oid pmemobj.OID, newSize uint64) (pmemobj.OID, error) {
	if newSize == 0 {
		if err := t.Free(oid); err != nil {
			return pmemobj.Null, err
		}
		return pmemobj.Null, nil
	}
	if oid.IsNull() {
		return t.Alloc(newSize)
	}

	oldSize, ok := t.pool.Alloc().UsableSize(oid.Offset())
	if !ok {
		return pmemobj.Null, t.onOpError(pmemobj.NewError("tx.Realloc", pmemobj.ErrCodeInvalidArgument, "oid is not a live allocation"))
	}

	a, err := t.pool.Alloc().Reserve(newSize)
	if err != nil {
		return pmemobj.Null, t.onOpError(pmemobj.WrapError("tx.Realloc", err))
	}

	keep := oldSize
	if newSize < keep {
		keep = newSize
	}
	dst := t.pool.ToPtr(a.Offset)
	src := t.pool.ToPtr(oid.Offset())
	t.pool.Ops().Memcpy(dst, src, keep, 0)
	if newSize > keep {
		t.pool.Ops().Memset(unsafe.Add(dst, keep), t.pool.AllocFillByte(), newSize-keep, 0)
	}
	t.actions = append(t.actions, a)

	freeAction, err := t.pool.Alloc().DeferFree(oid.Offset())
	if err != nil {
		return pmemobj.Null, t.onOpError(pmemobj.WrapError("tx.Realloc", err))
	}
	t.actions = append(t.actions, freeAction)

	return pmemobj.OID{PoolUUIDLo: t.pool.UUIDLo(), Off: a.Offset}, nil
}
