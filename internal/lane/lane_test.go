package lane

import (
	"testing"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/operation"
	"github.com/arjenvos/pmemobj/internal/pmemops"
	"github.com/arjenvos/pmemobj/internal/ulog"
)

type flatResolver struct{ base unsafe.Pointer }

func (r flatResolver) ToPtr(off uint64) unsafe.Pointer   { return unsafe.Add(r.base, off) }
func (r flatResolver) ToOffset(ptr unsafe.Pointer) uint64 { return uint64(uintptr(ptr) - uintptr(r.base)) }

func newTestLane(t *testing.T, region *pmemops.Anon, res flatResolver, base uint64) *Lane {
	t.Helper()
	mk := func(off uint64) *operation.Context {
		ptr := unsafe.Add(region.Base(), off)
		ulog.Construct(ptr, region, 256, 1, 0)
		return operation.New(ulog.At(ptr, region, res), nil)
	}
	return &Lane{Internal: mk(base), External: mk(base + 1024), Undo: mk(base + 2048)}
}

func TestHoldReleaseRoundTrip(t *testing.T) {
	region := pmemops.NewAnon(1 << 16)
	res := flatResolver{base: region.Base()}
	lanes := []*Lane{newTestLane(t, region, res, 4096), newTestLane(t, region, res, 8192)}
	d, err := Boot(lanes)
	if err != nil {
		t.Fatal(err)
	}
	info := NewLaneInfo()
	idx, l, release, err := d.Hold(info)
	if err != nil {
		t.Fatal(err)
	}
	if l == nil {
		t.Fatal("expected non-nil lane")
	}
	release()

	// Re-acquire should succeed using the remembered primary.
	idx2, _, release2, err := d.Hold(info)
	if err != nil {
		t.Fatal(err)
	}
	if idx2 != idx {
		t.Fatalf("expected to reacquire the same primary lane %d, got %d", idx, idx2)
	}
	release2()
}

func TestHoldAllBusyFails(t *testing.T) {
	region := pmemops.NewAnon(1 << 16)
	res := flatResolver{base: region.Base()}
	lanes := []*Lane{newTestLane(t, region, res, 4096)}
	d, err := Boot(lanes)
	if err != nil {
		t.Fatal(err)
	}
	info1, info2 := NewLaneInfo(), NewLaneInfo()
	_, _, release1, err := d.Hold(info1)
	if err != nil {
		t.Fatal(err)
	}
	defer release1()

	if _, _, _, err := d.Hold(info2); err == nil {
		t.Fatal("expected an error when every lane is busy")
	}
}
