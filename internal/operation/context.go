// Package operation implements the operation context: the per-lane
// staging area that batches entries destined for one ulog (redo or
// undo) before they are durably stored and, for redo logs, applied. A
// small state machine (idle -> in-progress -> cleanup) gates what each
// call is allowed to do next.
package operation

import (
	"fmt"
	"sync"

	"github.com/arjenvos/pmemobj/internal/constants"
	"github.com/arjenvos/pmemobj/internal/layout"
	"github.com/arjenvos/pmemobj/internal/ulog"
)

// State is the operation context's lifecycle state.
type State int

const (
	Idle State = iota
	InProgress
	Cleanup
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Cleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// pending is one not-yet-stored entry sitting in the merge window.
type pending struct {
	entry ulog.Entry
}

// Extend is called by a Context when its current ulog chain is out of
// room and a new continuation record is needed; it must return a
// pointer (already Construct-ed) to the new record's header, or an
// error if no space could be made available (ENOMEM).
type Extend func(minCapacity uint64) (*ulog.Log, error)

// Context is the DRAM-side staging area in front of one ulog chain.
// Entries accumulate in a bounded merge window so that repeated writes
// to the same offset within one transaction collapse into a single
// ulog entry instead of one per write. When the window is full its
// oldest entry is stored to the ulog; Process and ProcessExcluding store
// all of it in FIFO order, and Finish discards whatever is still in it.
type Context struct {
	mu sync.Mutex

	log   *ulog.Log
	first *ulog.Log
	tail  uint64 // used bytes within log's first-record data region
	state State

	window      []pending
	windowLimit func() uint64 // nil or returning 0 means constants.MergeWindowSize
	extend      Extend

	// userBufs are caller-supplied continuation records (see
	// tx.LogAppendBuffer), queued here rather than spliced onto the
	// chain immediately: a record is only linked in once the context
	// actually runs out of room for it, so a buffer attached but never
	// needed doesn't show up in the chain at all.
	userBufs []*ulog.Log
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithWindowLimit overrides the merge window's capacity with the result
// of calling limit each time AddEntry needs to know it, letting the
// limit change at runtime (tx.cache.size) without rebuilding the
// context. A nil limit, or one that returns 0, falls back to
// constants.MergeWindowSize.
func WithWindowLimit(limit func() uint64) Option {
	return func(c *Context) { c.windowLimit = limit }
}

// New creates a context fronting the given ulog chain.
func New(first *ulog.Log, extend Extend, opts ...Option) *Context {
	c := &Context{log: first, first: first, state: Idle, extend: extend}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) windowLimitLocked() int {
	if c.windowLimit != nil {
		if n := c.windowLimit(); n > 0 {
			return int(n)
		}
	}
	return constants.MergeWindowSize
}

// AttachBuffer queues a caller-supplied ulog record to be spliced onto
// this context's chain the next time more room is needed, ahead of
// falling back to Extend. Used to back tx.LogAppendBuffer: a buffer
// attached but never needed simply never gets linked in.
func (c *Context) AttachBuffer(rec *ulog.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userBufs = append(c.userBufs, rec)
}

// State returns the context's current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// begin transitions Idle -> InProgress; it is an error to begin a
// context that is already in progress or mid-cleanup.
func (c *Context) begin() error {
	if c.state != Idle {
		return fmt.Errorf("operation: begin called in state %s", c.state)
	}
	c.state = InProgress
	return nil
}

// AddEntry stages a fixed-value entry (Set/And/Or). If the most recent
// window entry for the same offset has the same type, the two are
// combined in place (And with &, Or with |, Set keeps the new value),
// giving the result the log's own replay order would; an entry of a
// different type for that offset ends the search. Otherwise the entry
// is appended to the window, evicting the oldest pending entry to the
// ulog first if the window is full.
func (c *Context) AddEntry(offset uint64, t layout.EntryType, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		if err := c.begin(); err != nil {
			return err
		}
	}
	if c.state == Cleanup {
		return fmt.Errorf("operation: AddEntry called during cleanup")
	}

	// Reverse scan: most recent writes to a given offset are most
	// likely to repeat (e.g. a counter bumped several times in one
	// transaction), so scanning from the end of the window finds a
	// coalescing target in O(1) for the common case.
	for i := len(c.window) - 1; i >= 0; i-- {
		w := &c.window[i].entry
		if w.Offset != offset || w.Type.IsBufEntry() {
			continue
		}
		if w.Type != t {
			break
		}
		switch t {
		case layout.EntryAnd:
			w.Value &= value
		case layout.EntryOr:
			w.Value |= value
		default:
			w.Value = value
		}
		return nil
	}

	if len(c.window) >= c.windowLimitLocked() {
		if err := c.evictOldestLocked(); err != nil {
			return err
		}
	}
	c.window = append(c.window, pending{entry: ulog.Entry{Type: t, Offset: offset, Value: value}})
	return nil
}

// AddBuffer stages a variable-length buffer entry (BufSet/BufCpy).
// Buffer entries are never coalesced (they aren't point writes). When
// an entry is stored and does not fit in the remaining space of the
// current record, the whole entry goes into a new continuation record
// (a queued user buffer, or one from the context's Extend function);
// entries are never split across records.
func (c *Context) AddBuffer(offset uint64, t layout.EntryType, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		if err := c.begin(); err != nil {
			return err
		}
	}
	if c.state == Cleanup {
		return fmt.Errorf("operation: AddBuffer called during cleanup")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.window = append(c.window, pending{entry: ulog.Entry{Type: t, Offset: offset, Data: buf}})
	return nil
}

// flushLocked stores every pending window entry into the ulog chain,
// extending it as needed, and clears the window. Callers must hold c.mu.
func (c *Context) flushLocked() error {
	for len(c.window) > 0 {
		if err := c.storeOneLocked(c.window[0].entry); err != nil {
			return err
		}
		c.window = c.window[1:]
	}
	return nil
}

func (c *Context) evictOldestLocked() error {
	if len(c.window) == 0 {
		return nil
	}
	if err := c.storeOneLocked(c.window[0].entry); err != nil {
		return err
	}
	c.window = c.window[1:]
	return nil
}

func (c *Context) storeOneLocked(e ulog.Entry) error {
	size := e.WireSize()
	for !c.log.Reserve(c.tail, size) {
		next, err := c.nextRecordLocked(size)
		if err != nil {
			return err
		}
		c.log.SetNext(next)
		c.log = next
		c.tail = 0
	}
	if err := c.log.Store(c.tail, e); err != nil {
		return err
	}
	c.tail += size
	return nil
}

// nextRecordLocked returns the next continuation record to splice onto
// the chain: a queued user buffer large enough to hold minCapacity if
// one is available, otherwise the result of calling Extend.
func (c *Context) nextRecordLocked(minCapacity uint64) (*ulog.Log, error) {
	for i, rec := range c.userBufs {
		if rec.Capacity() >= minCapacity {
			c.userBufs = append(c.userBufs[:i], c.userBufs[i+1:]...)
			return rec, nil
		}
	}
	if c.extend == nil {
		return nil, fmt.Errorf("operation: out of space and no Extend configured")
	}
	return c.extend(minCapacity)
}

// Process flushes the window and applies every stored entry (redo
// semantics), whatever kind of log the context fronts. The transaction
// runtime never calls it on an undo context: it replays the undo log
// through ProcessExcluding on abort.
func (c *Context) Process() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.flushLocked(); err != nil {
		return err
	}
	c.first.Process()
	return nil
}

// ProcessExcluding replays every pending and stored entry the way
// Process does, except it leaves untouched any byte range overlapping
// one of excludes. Used by tx.Abort when the transaction being rolled
// back still holds locks: the undo log's pre-images must not clobber
// bytes a held lock protects, since another goroutine depends on the
// value written since the snapshot surviving the rollback.
func (c *Context) ProcessExcluding(excludes []ulog.Range) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.flushLocked(); err != nil {
		return err
	}
	c.first.ForeachEntry(func(e ulog.Entry) bool {
		c.first.ApplyExcluding(e, excludes)
		return true
	})
	return nil
}

// Finish transitions InProgress -> Cleanup -> Idle, resetting the
// context (clobbering the ulog chain) so it's ready for the next
// transaction to reuse. It must be called exactly once per
// begin/Process or begin/abort cycle.
func (c *Context) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return nil
	}
	c.state = Cleanup
	rec := c.first
	for rec != nil {
		rec.Clobber()
		rec = rec.Next()
	}
	c.first.SetNext(nil)
	c.log = c.first
	c.tail = 0
	c.window = c.window[:0]
	c.state = Idle
	return nil
}

// RecoverRedo is called at pool-open time for a context fronting a redo
// log (internal or external ulog). A crash between storing an entry
// and applying it leaves committed-but-unapplied entries behind; this
// finishes applying them (idempotent even if some were already
// applied, since Set/And/Or/BufCpy/BufSet are all safe to reapply) and
// then resets the context to Idle.
func (c *Context) RecoverRedo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.first.Recover()
	c.first.Process()
	c.state = Cleanup
	rec := c.first
	for rec != nil {
		rec.Clobber()
		rec = rec.Next()
	}
	c.first.SetNext(nil)
	c.log = c.first
	c.tail = 0
	c.state = Idle
	return nil
}

// RecoverUndo is called at pool-open time for a context fronting the
// undo log. Any entries present mean the owning transaction crashed
// before completing its abort or commit; replaying them (applying each
// snapshot entry's pre-image back to its target) restores the
// pre-transaction state, after which the log is cleared.
func (c *Context) RecoverUndo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.first.Recover()
	c.first.Process() // undo entries apply the same way redo entries do
	c.state = Cleanup
	rec := c.first
	for rec != nil {
		rec.Clobber()
		rec = rec.Next()
	}
	c.first.SetNext(nil)
	c.log = c.first
	c.tail = 0
	c.state = Idle
	return nil
}

// Capacity returns the total payload capacity of the records currently
// in this context's ulog chain, for tx.LogIntentsMaxSize and
// tx.LogSnapshotsMaxSize. Bytes already used are not subtracted, and
// the chain can still grow past this figure through Extend.
func (c *Context) Capacity() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.first.CapacityTotal()
}

// ForeachPendingAndStored walks both the merge window (not yet durable)
// and the durable chain, in logical order, for callers (like undo
// replay) that need every entry regardless of whether it made it to
// the ulog yet.
func (c *Context) ForeachPendingAndStored(cb func(ulog.Entry) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cont := true
	c.first.ForeachEntry(func(e ulog.Entry) bool {
		cont = cb(e)
		return cont
	})
	if !cont {
		return
	}
	for _, p := range c.window {
		if !cb(p.entry) {
			return
		}
	}
}
