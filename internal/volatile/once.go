// Package volatile implements a three-state one-time initialization
// protocol for DRAM shadow state (lock shadows, lazily constructed
// runtime structures) that sits alongside persistent data but must
// never itself be persisted or reconstructed from the pool: each
// persistent object that needs one gets a State, lazily built on first
// use by whichever goroutine gets there first. A compare-and-swap on
// each State's phase (uninitialized -> initializing -> initialized)
// lets many such States coexist — one per persistent object — rather
// than collapsing to a single program-wide singleton.
package volatile

import (
	"runtime"
	"sync/atomic"
)

// state values for State.phase.
const (
	uninitialized int32 = iota
	initializing
	initialized
)

// State guards the lazy construction of one DRAM-only value. It is
// safe for concurrent use and safe to store by value inside a larger
// struct (its own pointer identity is never important; the phase and
// value fields are what matter).
type State struct {
	phase atomic.Int32
	value atomic.Pointer[any]
}

// Get returns the state's value, calling construct exactly once across
// all concurrent callers if it has not yet run. Concurrent callers that
// lose the race to construct block (via a brief spin) until the winner
// publishes its value.
func (s *State) Get(construct func() any) any {
	for {
		switch s.phase.Load() {
		case initialized:
			v := s.value.Load()
			return *v
		case uninitialized:
			if s.phase.CompareAndSwap(uninitialized, initializing) {
				v := construct()
				s.value.Store(&v)
				s.phase.Store(initialized)
				return v
			}
			// lost the race; yield and retry
			runtime.Gosched()
		default: // initializing
			runtime.Gosched()
		}
	}
}

// Reset returns the state to uninitialized, discarding any constructed
// value. Used when a persistent object is freed and its volatile
// shadow must not be handed to whatever reuses the offset next.
func (s *State) Reset() {
	s.value.Store(nil)
	s.phase.Store(uninitialized)
}

// Initialized reports whether construction has completed.
func (s *State) Initialized() bool {
	return s.phase.Load() == initialized
}
