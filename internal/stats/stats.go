// Package stats holds the engine's transient and (optionally)
// persistent counters, surfaced through the CTL tree's stats.* paths
// and through Snapshot for programmatic callers: atomic fields plus a
// point-in-time Snapshot() value type.
package stats

import (
	"sync/atomic"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/pmemops"
)

// Mode controls whether counters are tracked at all, and whether they
// are additionally mirrored into the pool file so they survive a
// reopen: disabled/transient/persistent/both.
type Mode int

const (
	Disabled Mode = iota
	Transient
	Persistent
	Both
)

// Stats holds every counter as an atomic field.
type Stats struct {
	mode Mode

	CurrAllocated atomic.Int64
	RunAllocated  atomic.Uint64
	RunActive     atomic.Uint64

	TxStarted   atomic.Uint64
	TxCommitted atomic.Uint64
	TxAborted   atomic.Uint64

	// persist mirrors CurrAllocated into a reserved pool-header region
	// when mode is Persistent or Both; nil otherwise.
	persist func(curr int64)
}

// New returns a Stats in the given mode.
func New(mode Mode) *Stats {
	return &Stats{mode: mode}
}

// BindPersistence wires a reserved pool-header offset to mirror
// CurrAllocated into, via ops, whenever mode is Persistent or Both.
func (s *Stats) BindPersistence(ops pmemops.MemOps, offset uint64) {
	base := ops.Base()
	s.persist = func(curr int64) {
		ptr := unsafe.Add(base, offset)
		ops.Memcpy(ptr, unsafe.Pointer(&curr), 8, pmemops.NoDrain)
	}
}

// Enabled reports whether counters are tracked at all.
func (s *Stats) Enabled() bool { return s.mode != Disabled }

// Mode returns the stats mode.
func (s *Stats) Mode() Mode { return s.mode }

// SetMode changes the tracking mode at runtime (the stats.enabled CTL
// leaf is read-write).
func (s *Stats) SetMode(m Mode) { s.mode = m }

// RecordAlloc updates allocation counters for a newly committed
// allocation of size bytes.
func (s *Stats) RecordAlloc(size uint64) {
	if !s.Enabled() {
		return
	}
	curr := s.CurrAllocated.Add(int64(size))
	s.RunAllocated.Add(1)
	s.RunActive.Add(1)
	if (s.mode == Persistent || s.mode == Both) && s.persist != nil {
		s.persist(curr)
	}
}

// RecordFree updates allocation counters for a committed free of size
// bytes.
func (s *Stats) RecordFree(size uint64) {
	if !s.Enabled() {
		return
	}
	curr := s.CurrAllocated.Add(-int64(size))
	if s.RunActive.Load() > 0 {
		s.RunActive.Add(^uint64(0)) // -1
	}
	if (s.mode == Persistent || s.mode == Both) && s.persist != nil {
		s.persist(curr)
	}
}

// RecordTxBegin/Commit/Abort track transaction lifecycle counts.
func (s *Stats) RecordTxBegin()  { if s.Enabled() { s.TxStarted.Add(1) } }
func (s *Stats) RecordTxCommit() { if s.Enabled() { s.TxCommitted.Add(1) } }
func (s *Stats) RecordTxAbort()  { if s.Enabled() { s.TxAborted.Add(1) } }

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	CurrAllocated int64
	RunAllocated  uint64
	RunActive     uint64
	TxStarted     uint64
	TxCommitted   uint64
	TxAborted     uint64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		CurrAllocated: s.CurrAllocated.Load(),
		RunAllocated:  s.RunAllocated.Load(),
		RunActive:     s.RunActive.Load(),
		TxStarted:     s.TxStarted.Load(),
		TxCommitted:   s.TxCommitted.Load(),
		TxAborted:     s.TxAborted.Load(),
	}
}
