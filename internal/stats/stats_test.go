package stats

import "testing"

func TestDisabledTracksNothing(t *testing.T) {
	s := New(Disabled)
	s.RecordAlloc(100)
	s.RecordTxBegin()
	snap := s.Snapshot()
	if snap.CurrAllocated != 0 || snap.TxStarted != 0 {
		t.Fatalf("disabled stats recorded activity: %+v", snap)
	}
}

func TestTransientTracksAllocAndFree(t *testing.T) {
	s := New(Transient)
	s.RecordAlloc(100)
	s.RecordAlloc(50)
	s.RecordFree(100)

	snap := s.Snapshot()
	if snap.CurrAllocated != 50 {
		t.Fatalf("CurrAllocated = %d, want 50", snap.CurrAllocated)
	}
	if snap.RunAllocated != 2 {
		t.Fatalf("RunAllocated = %d, want 2", snap.RunAllocated)
	}
	if snap.RunActive != 1 {
		t.Fatalf("RunActive = %d, want 1", snap.RunActive)
	}
}

func TestTxLifecycleCounters(t *testing.T) {
	s := New(Transient)
	s.RecordTxBegin()
	s.RecordTxBegin()
	s.RecordTxCommit()
	s.RecordTxAbort()

	snap := s.Snapshot()
	if snap.TxStarted != 2 || snap.TxCommitted != 1 || snap.TxAborted != 1 {
		t.Fatalf("unexpected tx counters: %+v", snap)
	}
}

func TestSetModeTakesEffectImmediately(t *testing.T) {
	s := New(Disabled)
	s.RecordAlloc(10)
	if s.Snapshot().CurrAllocated != 0 {
		t.Fatal("recorded while disabled")
	}
	s.SetMode(Transient)
	s.RecordAlloc(10)
	if s.Snapshot().CurrAllocated != 10 {
		t.Fatal("did not record after enabling")
	}
}
