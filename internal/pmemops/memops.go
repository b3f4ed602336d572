package pmemops

import "unsafe"

// bytesAt reinterprets the n bytes starting at ptr as a []byte without
// copying.
func bytesAt(ptr unsafe.Pointer, n uint64) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), int(n))
}

// rawMemcpy copies size bytes from src to dst without any persistence
// semantics. Shared by FileMapping and Anon.
func rawMemcpy(dst, src unsafe.Pointer, size uint64) unsafe.Pointer {
	if size == 0 {
		return dst
	}
	copy(bytesAt(dst, size), bytesAt(src, size))
	return dst
}

// rawMemmove is identical to rawMemcpy in Go: slice copy already
// tolerates overlapping source/destination ranges.
func rawMemmove(dst, src unsafe.Pointer, size uint64) unsafe.Pointer {
	return rawMemcpy(dst, src, size)
}

// rawMemset fills size bytes at dst with c.
func rawMemset(dst unsafe.Pointer, c byte, size uint64) unsafe.Pointer {
	if size == 0 {
		return dst
	}
	b := bytesAt(dst, size)
	for i := range b {
		b[i] = c
	}
	return dst
}
