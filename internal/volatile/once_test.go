package volatile

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetConstructsOnce(t *testing.T) {
	var s State
	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]any, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Get(func() any {
				calls.Add(1)
				return 42
			})
		}(i)
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("construct called %d times, want 1", calls.Load())
	}
	for _, r := range results {
		if r != 42 {
			t.Fatalf("result = %v, want 42", r)
		}
	}
}

func TestResetAllowsReconstruction(t *testing.T) {
	var s State
	s.Get(func() any { return 1 })
	s.Reset()
	if s.Initialized() {
		t.Fatal("Reset should clear initialized state")
	}
	v := s.Get(func() any { return 2 })
	if v != 2 {
		t.Fatalf("v = %v, want 2", v)
	}
}
