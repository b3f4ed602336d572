package pmemops

import (
	"testing"
	"unsafe"
)

func TestAnonMemcpyPersist(t *testing.T) {
	a := NewAnon(64)
	src := []byte("hello, pmem")
	a.Memcpy(a.Base(), unsafe.Pointer(&src[0]), uint64(len(src)), 0)
	got := bytesAt(a.Base(), uint64(len(src)))
	if string(got) != string(src) {
		t.Fatalf("got %q, want %q", got, src)
	}
}

func TestAnonMemset(t *testing.T) {
	a := NewAnon(16)
	a.Memset(a.Base(), 0xAB, 16, 0)
	for _, b := range bytesAt(a.Base(), 16) {
		if b != 0xAB {
			t.Fatalf("byte = %x, want 0xab", b)
		}
	}
}
