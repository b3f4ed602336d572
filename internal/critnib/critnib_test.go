package critnib

import (
	"testing"
	"unsafe"
)

func ptrFor(n int) unsafe.Pointer {
	v := new(int)
	*v = n
	return unsafe.Pointer(v)
}

func TestInsertGetRemoveRoundTrip(t *testing.T) {
	c := New()
	p := ptrFor(1)
	if !c.Insert(10, p) {
		t.Fatal("first insert should succeed")
	}
	got, ok := c.Get(10)
	if !ok || got != p {
		t.Fatal("Get should return the inserted pointer")
	}
	v, ok := c.Remove(10)
	if !ok || v != p {
		t.Fatal("Remove should return the removed pointer")
	}
	if _, ok := c.Get(10); ok {
		t.Fatal("key should be gone after Remove")
	}
}

func TestInsertTwiceKeepsFirst(t *testing.T) {
	c := New()
	p1, p2 := ptrFor(1), ptrFor(2)
	c.Insert(5, p1)
	if c.Insert(5, p2) {
		t.Fatal("second insert at the same key should report false")
	}
	got, _ := c.Get(5)
	if got != p1 {
		t.Fatal("value should remain the first one inserted")
	}
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	c := New()
	if _, ok := c.Remove(999); ok {
		t.Fatal("removing a nonexistent key should report false")
	}
}

func TestFindLE(t *testing.T) {
	c := New()
	c.Insert(10, ptrFor(10))
	c.Insert(20, ptrFor(20))
	c.Insert(30, ptrFor(30))

	if k, _, ok := c.FindLE(25); !ok || k != 20 {
		t.Fatalf("FindLE(25) = %d, %v, want 20, true", k, ok)
	}
	if k, _, ok := c.FindLE(10); !ok || k != 10 {
		t.Fatalf("FindLE(10) = %d, %v, want 10, true", k, ok)
	}
	if _, _, ok := c.FindLE(5); ok {
		t.Fatal("FindLE below the smallest key should report false")
	}
}
