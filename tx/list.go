package tx

import (
	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/internal/list"
)

// InsertNew allocates a zeroed object of size bytes and splices it onto
// the head of the doubly-linked list rooted at headOffset, in the same
// transaction: a crash between the allocation and the splice is
// impossible, since both land in the same commit. The new object's
// first 16 bytes are reserved for the list's own Next/Prev pointers
// (see internal/list.Entry); a caller that needs further fields lays
// them out starting at byte 16 of the returned OID.
func (t *Tx) InsertNew(size uint64, headOffset uint64) (pmemobj.OID, error) {
	oid, err := t.Alloc(size)
	if err != nil {
		return pmemobj.Null, err
	}
	l := list.At(headOffset, t.pool)
	if err := l.InsertAfter(t.lane.External, headOffset, oid.Offset()); err != nil {
		return pmemobj.Null, t.onOpError(pmemobj.WrapError("tx.InsertNew", err))
	}
	return oid, nil
}

// RemoveFromList splices the object at entryOffset out of the list
// rooted at headOffset, without freeing it; pair with Free if the
// object itself should also be released.
func (t *Tx) RemoveFromList(headOffset, entryOffset uint64) error {
	l := list.At(headOffset, t.pool)
	if err := l.Remove(t.lane.External, entryOffset); err != nil {
		return t.onOpError(pmemobj.WrapError("tx.RemoveFromList", err))
	}
	return nil
}
