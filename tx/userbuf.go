package tx

import (
	"unsafe"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/internal/constants"
	"github.com/arjenvos/pmemobj/internal/layout"
	"github.com/arjenvos/pmemobj/internal/ulog"
)

// BufferKind selects which of a transaction's logs a caller-supplied
// buffer backs.
type BufferKind int

const (
	// RedoBuffer backs the external (redo) log: entries stored in it
	// apply at Commit.
	RedoBuffer BufferKind = iota
	// UndoBuffer backs the undo log: entries stored in it are pre-image
	// snapshots replayed on Abort.
	UndoBuffer
)

// LogAppendBuffer hands the engine a caller-owned region of memory
// ([addr, addr+size)) to use as a continuation ulog record the next
// time this transaction's redo or undo log (per kind) runs out of room,
// instead of extending the chain by reserving fresh heap space. This is
// how a caller with a known worst-case logging volume avoids an
// unexpected mid-transaction ENOMEM: the buffer only gets linked into
// the chain if and when it's actually needed, so supplying one that
// turns out to be unnecessary costs nothing beyond the call itself.
//
// size must be large enough to host a ulog header plus at least one
// entry, or this returns EINVAL. When tx.debug.verify_user_buffers is
// enabled, a range that overlaps one already registered against this
// pool (by an earlier LogAppendBuffer call, possibly from a different
// transaction) is also rejected, to catch a caller accidentally handing
// out the same memory twice.
func (t *Tx) LogAppendBuffer(addr unsafe.Pointer, size uint64, kind BufferKind) error {
	if size < constants.UlogHeaderSize+constants.EntryValSize {
		return t.onOpError(pmemobj.NewError("tx.LogAppendBuffer", pmemobj.ErrCodeInvalidArgument, "buffer too small to host a ulog record"))
	}
	off := t.pool.ToOffset(addr)
	if err := t.pool.RegisterUserBuffer(off, size); err != nil {
		return t.onOpError(pmemobj.WrapError("tx.LogAppendBuffer", err))
	}

	payload := size - constants.UlogHeaderSize
	ulog.Construct(addr, t.pool.Ops(), payload, 1, layout.UlogUserOwned)
	rec := ulog.At(addr, t.pool.Ops(), t.pool)

	switch kind {
	case UndoBuffer:
		t.lane.Undo.AttachBuffer(rec)
	default:
		t.lane.External.AttachBuffer(rec)
	}
	return nil
}

// LogIntentsMaxSize returns the total payload capacity, in bytes, of
// the records currently in this transaction's external (redo) ulog
// chain, less one buffer-entry header. Bytes already used are not
// subtracted, a buffer attached via LogAppendBuffer but not yet linked
// into the chain is not counted, and the chain can still grow past this
// figure by extending from the heap. The allocator's own publish
// entries go to the internal ulog, not to this chain.
func (t *Tx) LogIntentsMaxSize() uint64 {
	total := t.lane.External.Capacity()
	if total < constants.EntryBufHdrSize {
		return 0
	}
	return total - constants.EntryBufHdrSize
}

// LogSnapshotsMaxSize returns the same figure for the undo ulog chain
// that AddRange snapshots go to.
func (t *Tx) LogSnapshotsMaxSize() uint64 {
	total := t.lane.Undo.Capacity()
	if total < constants.EntryBufHdrSize {
		return 0
	}
	return total - constants.EntryBufHdrSize
}
