package pmemobj

import (
	"sync"

	"github.com/arjenvos/pmemobj/internal/volatile"
)

// LockKind selects the acquisition semantics a Lock uses: MutexKind
// takes a plain exclusive lock, RWLockKind takes a writer lock (a
// transaction always mutates the range it holds a lock over, so Begin
// never takes an RWLockKind lock for reading).
type LockKind int

const (
	MutexKind LockKind = iota
	RWLockKind
)

// Lock is a transaction-held lock guarding a byte range within a pool.
// Its exclusion is a runtime-only sync.Mutex or sync.RWMutex, built once
// per process via internal/volatile the same way the allocator rebuilds
// its free-list bookkeeping on every open rather than persisting it
// directly: only the byte range a Lock guards needs to be durable, so
// that a transaction's undo replay on abort knows which bytes to leave
// alone (see tx.Begin's lock arguments).
type Lock struct {
	kind   LockKind
	offset uint64
	size   uint64
	state  volatile.State
}

// NewLock returns a Lock of the given kind guarding [offset, offset+size).
func NewLock(kind LockKind, offset, size uint64) *Lock {
	return &Lock{kind: kind, offset: offset, size: size}
}

func (l *Lock) mutex() *sync.Mutex {
	return l.state.Get(func() any { return &sync.Mutex{} }).(*sync.Mutex)
}

func (l *Lock) rwMutex() *sync.RWMutex {
	return l.state.Get(func() any { return &sync.RWMutex{} }).(*sync.RWMutex)
}

// Lock acquires exclusive use of l, blocking until available.
func (l *Lock) Lock() {
	if l.kind == RWLockKind {
		l.rwMutex().Lock()
		return
	}
	l.mutex().Lock()
}

// Unlock releases a Lock previously acquired with Lock.
func (l *Lock) Unlock() {
	if l.kind == RWLockKind {
		l.rwMutex().Unlock()
		return
	}
	l.mutex().Unlock()
}

// RLock acquires a shared, read-only hold on an RWLockKind lock, for a
// caller outside any transaction that only needs to observe the guarded
// range. It panics if l is a MutexKind lock, the same way taking a
// sync.RWMutex's read lock through a plain sync.Mutex has no meaning.
func (l *Lock) RLock() {
	if l.kind != RWLockKind {
		panic("pmemobj: RLock called on a MutexKind Lock")
	}
	l.rwMutex().RLock()
}

// RUnlock releases a hold acquired with RLock.
func (l *Lock) RUnlock() {
	if l.kind != RWLockKind {
		panic("pmemobj: RUnlock called on a MutexKind Lock")
	}
	l.rwMutex().RUnlock()
}

// Range returns the byte range this lock protects.
func (l *Lock) Range() (offset, size uint64) { return l.offset, l.size }
