package ctl

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/arjenvos/pmemobj/internal/stats"
)

// DebugFlags holds the mutable knobs exposed under tx.debug.* and
// debug.*. Every field is an atomic so a CTL write from one goroutine
// is immediately visible to a transaction running on another, without
// the registry itself needing a lock.
type DebugFlags struct {
	SkipExpensiveChecks atomic.Bool
	VerifyUserBuffers   atomic.Bool
	AllocPattern         atomic.Uint32 // 0 means "don't pre-fill"
}

// TxCacheSize backs tx.cache.size: the per-thread operation.Context
// merge-window override. 0 means "use the engine default"
// (constants.MergeWindowSize).
type TxCacheSize struct {
	atomic.Uint64
}

// BuildDefault registers every supported CTL leaf against concrete
// engine state: debug flags, the heap's size-class table, and the
// stats counters.
func BuildDefault(st *stats.Stats, debug *DebugFlags, cache *TxCacheSize, classSizes []uint64) *Registry {
	r := New()

	r.Register("tx.debug.skip_expensive_checks", &Leaf{
		Read:  func() (string, error) { return boolStr(debug.SkipExpensiveChecks.Load()), nil },
		Write: func(v string) error { b, err := ParseBool(v); if err != nil { return err }; debug.SkipExpensiveChecks.Store(b); return nil },
	})
	r.Register("tx.debug.verify_user_buffers", &Leaf{
		Read:  func() (string, error) { return boolStr(debug.VerifyUserBuffers.Load()), nil },
		Write: func(v string) error { b, err := ParseBool(v); if err != nil { return err }; debug.VerifyUserBuffers.Store(b); return nil },
	})
	r.Register("debug.heap.alloc_pattern", &Leaf{
		Read:  func() (string, error) { return strconv.FormatUint(uint64(debug.AllocPattern.Load()), 10), nil },
		Write: func(v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return err
			}
			debug.AllocPattern.Store(uint32(n))
			return nil
		},
	})

	r.Register("tx.cache.size", &Leaf{
		Read:  func() (string, error) { return strconv.FormatUint(cache.Load(), 10), nil },
		Write: func(v string) error { n, err := ParseUint(v); if err != nil { return err }; cache.Store(n); return nil },
	})

	r.Register("heap.size.granularity", &Leaf{
		Read: func() (string, error) { return strconv.FormatUint(classSizes[0], 10), nil },
	})
	r.Register("heap.size.extend", &Leaf{
		// The reference arena is a single bump region sized at pool
		// creation; it never extends, so this leaf always reports 0.
		Read: func() (string, error) { return "0", nil },
	})
	r.Register("heap.narenas.automatic", &Leaf{
		Read: func() (string, error) { return "1", nil },
	})
	r.Register("heap.narenas.total", &Leaf{
		Read: func() (string, error) { return "1", nil },
	})

	r.RegisterIndexed("heap.alloc_class.#.desc", func(id string) *Leaf {
		return &Leaf{
			Read: func() (string, error) {
				idx, err := strconv.Atoi(id)
				if err != nil || idx < 0 || idx >= len(classSizes) {
					return "", fmt.Errorf("ctl: no alloc class %q", id)
				}
				return fmt.Sprintf("unit_size=%d", classSizes[idx]), nil
			},
		}
	})
	r.Register("heap.alloc_class.new.desc", &Leaf{
		// The reference bucket allocator's classes are fixed powers of
		// two; custom classes aren't supported, so this leaf reports
		// not-implemented rather than silently ignoring the request.
		Run: func(string) (string, error) { return "", fmt.Errorf("ctl: custom alloc classes not implemented") },
	})

	r.Register("stats.enabled", &Leaf{
		Read: func() (string, error) { return modeStr(st.Mode()), nil },
		Write: func(v string) error {
			m, err := parseMode(v)
			if err != nil {
				return err
			}
			st.SetMode(m)
			return nil
		},
	})
	r.Register("stats.heap.curr_allocated", &Leaf{
		Read: func() (string, error) { return strconv.FormatInt(st.Snapshot().CurrAllocated, 10), nil },
	})
	r.Register("stats.heap.run_allocated", &Leaf{
		Read: func() (string, error) { return strconv.FormatUint(st.Snapshot().RunAllocated, 10), nil },
	})
	r.Register("stats.heap.run_active", &Leaf{
		Read: func() (string, error) { return strconv.FormatUint(st.Snapshot().RunActive, 10), nil },
	})
	r.Register("stats.tx.started", &Leaf{
		Read: func() (string, error) { return strconv.FormatUint(st.Snapshot().TxStarted, 10), nil },
	})
	r.Register("stats.tx.committed", &Leaf{
		Read: func() (string, error) { return strconv.FormatUint(st.Snapshot().TxCommitted, 10), nil },
	})
	r.Register("stats.tx.aborted", &Leaf{
		Read: func() (string, error) { return strconv.FormatUint(st.Snapshot().TxAborted, 10), nil },
	})

	return r
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func modeStr(m stats.Mode) string {
	switch m {
	case stats.Disabled:
		return "disabled"
	case stats.Transient:
		return "transient"
	case stats.Persistent:
		return "persistent"
	case stats.Both:
		return "both"
	default:
		return "unknown"
	}
}

func parseMode(s string) (stats.Mode, error) {
	switch strings.ToLower(s) {
	case "disabled", "0", "false":
		return stats.Disabled, nil
	case "transient":
		return stats.Transient, nil
	case "persistent":
		return stats.Persistent, nil
	case "both", "1", "true":
		return stats.Both, nil
	default:
		return 0, fmt.Errorf("ctl: %q is not a valid stats mode", s)
	}
}
