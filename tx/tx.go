// Package tx implements the transaction runtime: nested begin/commit/
// abort over a pool's lanes, snapshot-based undo logging for in-place
// writes, redo logging for allocator bookkeeping and user-buffer
// appends, and the callback stages (OnCommit/OnAbort) corresponding to
// the work/on-commit/on-abort/finally progression a transaction moves
// through. Built on internal/operation, internal/lane, internal/palloc
// and internal/rangetree rather than reimplementing any of their
// bookkeeping.
package tx

import (
	"fmt"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/internal/lane"
	"github.com/arjenvos/pmemobj/internal/logging"
	"github.com/arjenvos/pmemobj/internal/palloc"
	"github.com/arjenvos/pmemobj/internal/rangetree"
	"github.com/arjenvos/pmemobj/internal/ulog"
)

// Stage tracks where a transaction is in its lifecycle: a
// transaction's callbacks (OnCommit, OnAbort) only make sense to
// register during StageWork, and only fire during the matching
// completion stage.
type Stage int

const (
	StageNone Stage = iota
	StageWork
	StageOnCommit
	StageOnAbort
	StageFinally
)

// FailBehavior selects what happens when a fallible transactional
// operation (Alloc, Free, Write, ...) returns an error: FailAbort aborts
// the whole transaction before the error reaches the caller, FailReturn
// just returns the error and leaves the transaction open for the caller
// to decide. An outermost Begin always starts at FailAbort; a nested
// Begin inherits whatever the enclosing frame was set to.
type FailBehavior int

const (
	FailAbort FailBehavior = iota
	FailReturn
)

type frame struct {
	failBehavior FailBehavior
}

// Tx is one open transaction: a held lane plus the DRAM-side
// bookkeeping (which byte ranges are already snapshotted, which
// allocator actions are pending) needed to commit or abort it. A Tx can
// be nested: every Begin on the same Worker while a transaction is
// already open reuses this same *Tx and pushes a frame rather than
// opening a second one, matching the reference engine's single
// shared transaction state per worker thread.
type Tx struct {
	pool    *pmemobj.Pool
	worker  *Worker
	lane    *lane.Lane
	release func()

	snapshotted *rangetree.Tree
	actions     []palloc.Action

	onCommit []func()
	onAbort  []func()

	stage Stage
	done  bool

	frames  []frame
	locks   []*pmemobj.Lock
	aborted bool
}

// Begin acquires a lane for w and starts a new transaction on it, or —
// if w already has one open — pushes a nested frame onto it instead.
// locks are acquired in argument order; every lock passed to any frame
// is released, in reverse acquisition order, only when the outermost
// frame finally commits or aborts. A nested Begin against a different
// pool than the one the outer transaction is running against is
// rejected: a transaction's redo/undo state belongs to one lane on one
// pool.
func Begin(pool *pmemobj.Pool, w *Worker, locks ...*pmemobj.Lock) (*Tx, error) {
	if w.active != nil {
		t := w.active
		if t.pool != pool {
			return nil, pmemobj.NewError("tx.Begin", pmemobj.ErrCodeInvalidArgument, "nested transaction must run against the same pool as its outer transaction")
		}
		t.frames = append(t.frames, frame{failBehavior: t.failBehavior()})
		t.acquireLocks(locks)
		return t, nil
	}

	_, l, release, err := pool.HoldLane(w.info)
	if err != nil {
		return nil, pmemobj.WrapError("tx.Begin", err)
	}
	pool.RecordTxBegin()
	t := &Tx{
		pool:        pool,
		worker:      w,
		lane:        l,
		release:     release,
		snapshotted: rangetree.New(),
		stage:       StageWork,
		frames:      []frame{{failBehavior: FailAbort}},
	}
	t.acquireLocks(locks)
	w.active = t
	return t, nil
}

func (t *Tx) acquireLocks(locks []*pmemobj.Lock) {
	for _, lk := range locks {
		lk.Lock()
		t.locks = append(t.locks, lk)
	}
}

// Pool returns the pool this transaction was begun on.
func (t *Tx) Pool() *pmemobj.Pool { return t.pool }

// Stage returns the transaction's current lifecycle stage.
func (t *Tx) Stage() Stage { return t.stage }

// Depth returns how many nested Begin frames are currently open (1 for
// an outermost, not-yet-nested transaction).
func (t *Tx) Depth() int { return len(t.frames) }

func (t *Tx) failBehavior() FailBehavior {
	return t.frames[len(t.frames)-1].failBehavior
}

// SetFailBehavior changes what the current frame does when a
// transactional operation fails, for the rest of this frame's lifetime.
func (t *Tx) SetFailBehavior(fb FailBehavior) {
	t.frames[len(t.frames)-1].failBehavior = fb
}

// onOpError is called by every fallible transactional operation
// (Alloc, Free, Write, Realloc, LogAppendBuffer) with a non-nil error
// before returning it: under FailAbort (the default), the error
// immediately aborts the whole transaction right there, so code after
// the failing call never runs against a transaction that's secretly
// already doomed; under FailReturn it's left to the caller.
func (t *Tx) onOpError(err error) error {
	if err == nil {
		return nil
	}
	if t.failBehavior() == FailAbort && !t.done {
		t.Abort(err)
	}
	return err
}

// OnCommit registers fn to run after a successful Commit. Callbacks
// run in registration order. Registering outside StageWork is a
// programmer error and returns an error rather than silently dropping
// fn.
func (t *Tx) OnCommit(fn func()) error {
	if t.stage != StageWork {
		return fmt.Errorf("tx: OnCommit called outside the work stage")
	}
	t.onCommit = append(t.onCommit, fn)
	return nil
}

// OnAbort registers fn to run after an Abort (including one triggered
// by Run's recovered panic or returned error).
func (t *Tx) OnAbort(fn func()) error {
	if t.stage != StageWork {
		return fmt.Errorf("tx: OnAbort called outside the work stage")
	}
	t.onAbort = append(t.onAbort, fn)
	return nil
}

// Commit ends the current frame. For a nested frame this only pops the
// frame: the shared redo/undo state keeps accumulating under the
// outermost frame, which is the only one that actually durably applies
// anything. For the outermost frame, Commit durably applies every
// staged allocator action and redo entry, discards the undo log (no
// rollback needed), runs the OnCommit callbacks, releases every held
// lock (in reverse acquisition order) and the transaction's lane.
// Calling Commit twice, or calling it after Abort, is a programmer
// error.
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("tx: Commit called on a finished transaction")
	}
	if len(t.frames) > 1 {
		t.frames = t.frames[:len(t.frames)-1]
		return nil
	}

	if err := t.pool.Alloc().Publish(t.lane.Internal, t.actions); err != nil {
		return t.fatal("tx.Commit", err)
	}
	if err := t.lane.Internal.Process(); err != nil {
		return t.fatal("tx.Commit", err)
	}
	t.pool.Alloc().Commit(t.actions)
	for _, a := range t.actions {
		if a.IsFree() {
			t.pool.RecordFree(a.Size)
		} else {
			t.pool.RecordAlloc(a.Size)
		}
	}

	if err := t.lane.External.Process(); err != nil {
		return t.fatal("tx.Commit", err)
	}

	if err := t.lane.Undo.Finish(); err != nil {
		return t.fatal("tx.Commit", err)
	}
	if err := t.lane.Internal.Finish(); err != nil {
		return t.fatal("tx.Commit", err)
	}
	if err := t.lane.External.Finish(); err != nil {
		return t.fatal("tx.Commit", err)
	}

	t.stage = StageOnCommit
	for _, fn := range t.onCommit {
		fn()
	}
	t.stage = StageFinally
	t.pool.RecordTxCommit()
	t.done = true
	t.frames = nil
	t.worker.active = nil
	t.releaseLocksAndLane()
	return nil
}

// fatal is reached only if a redo write fails after this transaction's
// undo log was already fully staged (Commit) or after undo replay has
// already begun (Abort); the reference implementation treats this as
// unrecoverable (the pool's on-media state no longer matches either the
// pre- or post-transaction value), so it logs the failure and panics
// with a FatalError instead of returning an error a caller might paper
// over.
func (t *Tx) fatal(op string, cause error) error {
	fe := pmemobj.FatalError{Op: op, Msg: cause.Error()}
	logging.Default().Fatal(fe.Error())
	panic(fe)
}

// Abort ends the current frame by rolling back the transaction. The
// physical rollback (undo replay, action cancellation) happens exactly
// once no matter how many nested frames call Abort: the first call
// performs it, every later call (whether the same frame aborting twice
// or an outer frame's own Abort after a nested Abort already ran)
// only pops its frame. Abort always succeeds barring unrecoverable log
// corruption, which it reports as a FatalError panic rather than an
// error return, matching Commit's failure contract. cause is
// informational only. Only the outermost frame's Abort runs the
// OnAbort callbacks and releases locks and the lane.
func (t *Tx) Abort(cause error) error {
	if t.done {
		return fmt.Errorf("tx: Abort called on a finished transaction")
	}
	if !t.aborted {
		t.aborted = true
		t.applyUndoExcludingLocks()
		t.pool.Alloc().Cancel(t.actions)

		if err := t.lane.Undo.Finish(); err != nil {
			return t.fatal("tx.Abort", err)
		}
		if err := t.lane.Internal.Finish(); err != nil {
			return t.fatal("tx.Abort", err)
		}
		if err := t.lane.External.Finish(); err != nil {
			return t.fatal("tx.Abort", err)
		}
	}

	if len(t.frames) > 1 {
		t.frames = t.frames[:len(t.frames)-1]
		return nil
	}

	t.stage = StageOnAbort
	for _, fn := range t.onAbort {
		fn()
	}
	t.stage = StageFinally
	t.pool.RecordTxAbort()
	t.done = true
	t.frames = nil
	t.worker.active = nil
	t.releaseLocksAndLane()
	return nil
}

// applyUndoExcludingLocks replays the undo log's snapshot entries back
// over the pool, the same way Commit's redo logs get applied, except
// any byte currently protected by a lock this transaction holds is left
// untouched: the value written there since the snapshot must survive
// the rollback.
func (t *Tx) applyUndoExcludingLocks() {
	excludes := make([]ulog.Range, 0, len(t.locks))
	for _, lk := range t.locks {
		off, sz := lk.Range()
		excludes = append(excludes, ulog.Range{Offset: off, Size: sz})
	}
	t.lane.Undo.ProcessExcluding(excludes)
}

// releaseLocksAndLane releases every lock this transaction acquired, in
// reverse order of acquisition, then releases the lane back to the
// pool.
func (t *Tx) releaseLocksAndLane() {
	for i := len(t.locks) - 1; i >= 0; i-- {
		t.locks[i].Unlock()
	}
	t.locks = nil
	t.release()
}

// Run begins a transaction on w (or joins one already open on w,
// pushing a nested frame — see Begin), invokes fn, and commits on a
// nil return or aborts on a non-nil one. A panic inside fn aborts the
// transaction before propagating, so a crash mid-transaction never
// leaves the pool holding a half-applied update. locks are forwarded to
// Begin.
func Run(pool *pmemobj.Pool, w *Worker, fn func(*Tx) error, locks ...*pmemobj.Lock) (err error) {
	t, err := Begin(pool, w, locks...)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if !t.done {
				t.Abort(fmt.Errorf("panic: %v", r))
			}
			panic(r)
		}
	}()
	if werr := fn(t); werr != nil {
		if !t.done {
			if aerr := t.Abort(werr); aerr != nil {
				return aerr
			}
		}
		return werr
	}
	if t.done {
		return nil
	}
	return t.Commit()
}
