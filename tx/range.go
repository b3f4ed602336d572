package tx

import (
	"unsafe"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/internal/bufpool"
	"github.com/arjenvos/pmemobj/internal/layout"
)

// AddRange snapshots [offset, offset+size) into the transaction's undo
// log before the caller modifies it, so Abort can restore the
// pre-transaction bytes. Overlapping or repeated AddRange calls within
// one transaction coalesce into their union (per internal/rangetree),
// so the same bytes are never snapshotted, and never charged against
// the undo log's capacity, twice.
//
// That dedup check walks the transaction's snapshotted-range tree on
// every call, which shows up for callers that AddRange the same few
// hot ranges at high frequency and already know none of their calls
// overlap. tx.debug.skip_expensive_checks skips it: every call then
// snapshots unconditionally, trading extra undo-log usage (and the
// risk of an earlier snapshot getting clobbered by a later, wider one
// that assumed no overlap) for the lookup's cost.
func (t *Tx) AddRange(offset, size uint64) error {
	if size == 0 {
		return t.onOpError(pmemobj.NewError("tx.AddRange", pmemobj.ErrCodeInvalidArgument, "zero-size range"))
	}
	skipCheck := t.pool.SkipExpensiveChecks()
	if !skipCheck && t.snapshotted.Contains(offset, size) {
		return nil
	}
	added := t.snapshotted.Add(offset, size)
	if !skipCheck && added == 0 {
		return nil
	}

	scratch := bufpool.Get(size)
	defer bufpool.Put(scratch)
	copy(scratch, unsafe.Slice((*byte)(t.pool.ToPtr(offset)), size))

	return t.onOpError(t.lane.Undo.AddBuffer(offset, layout.EntryBufCpy, scratch))
}

// Write snapshots [offset, offset+len(data)) via AddRange and then
// writes data in place, persisting it immediately: a snapshot-then-
// modify idiom collapsed into one call. By the time Write returns, the
// new bytes are durable and the old ones are safely in the undo log
// should the transaction later abort.
func (t *Tx) Write(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := t.AddRange(offset, uint64(len(data))); err != nil {
		return err
	}
	t.pool.Ops().Memcpy(t.pool.ToPtr(offset), unsafe.Pointer(&data[0]), uint64(len(data)), 0)
	return nil
}
