package pmemops

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FileMapping maps a pool file into the process address space and
// implements MemOps over it. Persist is flush (msync of the dirty
// range) followed by drain; Go has no portable way to distinguish a
// true DAX mapping from an ordinary mmap, so flush always goes through
// msync rather than being skipped for "real" pmem. This is a documented
// approximation: on true persistent memory the flush step would instead
// be a cache-line clwb/clflushopt loop, which Go cannot express without
// cgo or assembly.
type FileMapping struct {
	f    *os.File
	data []byte
	size uint64
	// drains counts Drain calls; used only to give Drain an observable
	// side effect under race detection and in tests.
	drains atomic.Uint64
}

// CreateFile creates (or truncates) a pool file of the given size and
// maps it.
func CreateFile(path string, size int64) (*FileMapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("pmemops: create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("pmemops: truncate %s: %w", path, err)
	}
	return mapFile(f, size)
}

// OpenFile maps an existing pool file.
func OpenFile(path string) (*FileMapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("pmemops: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pmemops: stat %s: %w", path, err)
	}
	return mapFile(f, st.Size())
}

func mapFile(f *os.File, size int64) (*FileMapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pmemops: mmap: %w", err)
	}
	return &FileMapping{f: f, data: data, size: uint64(size)}, nil
}

// Close unmaps and closes the underlying file.
func (m *FileMapping) Close() error {
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("pmemops: munmap: %w", err)
	}
	return m.f.Close()
}

func (m *FileMapping) Base() unsafe.Pointer { return unsafe.Pointer(&m.data[0]) }
func (m *FileMapping) Size() uint64         { return m.size }

func (m *FileMapping) offsetRange(ptr unsafe.Pointer, size uint64) []byte {
	base := uintptr(m.Base())
	off := uintptr(ptr) - base
	return m.data[off : off+uintptr(size)]
}

func (m *FileMapping) Flush(ptr unsafe.Pointer, size uint64) {
	if size == 0 {
		return
	}
	rng := m.offsetRange(ptr, size)
	// msync requires page alignment; round the range out to full pages.
	pageSize := uint64(os.Getpagesize())
	base := uintptr(unsafe.Pointer(&rng[0])) - uintptr(m.Base())
	start := (uint64(base) / pageSize) * pageSize
	end := uint64(base) + size
	end = ((end + pageSize - 1) / pageSize) * pageSize
	if end > m.size {
		end = m.size
	}
	_ = unix.Msync(m.data[start:end], unix.MS_SYNC)
}

func (m *FileMapping) Drain() {
	m.drains.Add(1)
}

func (m *FileMapping) Persist(ptr unsafe.Pointer, size uint64) {
	m.Flush(ptr, size)
	m.Drain()
}

func (m *FileMapping) Memcpy(dst, src unsafe.Pointer, size uint64, flags Flag) unsafe.Pointer {
	rawMemcpy(dst, src, size)
	m.maybePersist(dst, size, flags)
	return dst
}

func (m *FileMapping) Memset(dst unsafe.Pointer, c byte, size uint64, flags Flag) unsafe.Pointer {
	rawMemset(dst, c, size)
	m.maybePersist(dst, size, flags)
	return dst
}

func (m *FileMapping) Memmove(dst, src unsafe.Pointer, size uint64, flags Flag) unsafe.Pointer {
	rawMemmove(dst, src, size)
	m.maybePersist(dst, size, flags)
	return dst
}

func (m *FileMapping) maybePersist(dst unsafe.Pointer, size uint64, flags Flag) {
	if flags&NoFlush != 0 {
		return
	}
	m.Flush(dst, size)
	if flags&NoDrain == 0 {
		m.Drain()
	}
}
