package list

import (
	"testing"
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/operation"
	"github.com/arjenvos/pmemobj/internal/ulog"
	"github.com/arjenvos/pmemobj/internal/pmemops"
)

type flatResolver struct{ base unsafe.Pointer }

func (r flatResolver) ToPtr(off uint64) unsafe.Pointer { return unsafe.Add(r.base, off) }
func (r flatResolver) ToOffset(ptr unsafe.Pointer) uint64 {
	return uint64(uintptr(ptr) - uintptr(r.base))
}

func newTestList(t *testing.T) (*List, *operation.Context, flatResolver, pmemops.MemOps) {
	t.Helper()
	region := pmemops.NewAnon(8192)
	res := flatResolver{base: region.Base()}

	logPtr := unsafe.Add(region.Base(), 4096)
	ulog.Construct(logPtr, region, 1024, 1, 0)
	log := ulog.At(logPtr, region, res)
	ctx := operation.New(log, nil)

	return At(16, res), ctx, res, region
}

func TestInsertAfterAndForeach(t *testing.T) {
	l, ctx, _, _ := newTestList(t)

	a := uint64(64)
	b := uint64(128)
	if err := l.InsertAfter(ctx, 16, a); err != nil {
		t.Fatal(err)
	}
	if err := l.InsertAfter(ctx, a, b); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Process(); err != nil {
		t.Fatal(err)
	}

	var seen []uint64
	l.Foreach(func(off uint64) bool {
		seen = append(seen, off)
		return true
	})
	if len(seen) != 2 || seen[0] != a || seen[1] != b {
		t.Fatalf("unexpected walk order: %v", seen)
	}
}

func TestRemoveRelinksNeighbors(t *testing.T) {
	l, ctx, _, _ := newTestList(t)

	a := uint64(64)
	b := uint64(128)
	c := uint64(192)
	l.InsertAfter(ctx, 16, a)
	l.InsertAfter(ctx, a, b)
	l.InsertAfter(ctx, b, c)
	if err := ctx.Process(); err != nil {
		t.Fatal(err)
	}

	if err := l.Remove(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Process(); err != nil {
		t.Fatal(err)
	}

	var seen []uint64
	l.Foreach(func(off uint64) bool {
		seen = append(seen, off)
		return true
	})
	if len(seen) != 2 || seen[0] != a || seen[1] != c {
		t.Fatalf("unexpected walk order after remove: %v", seen)
	}
}
