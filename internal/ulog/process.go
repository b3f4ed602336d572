package ulog

import (
	"github.com/arjenvos/pmemobj/internal/layout"
)

// Process applies every live entry in this record's chain to the pool
// addressed through res, persisting each write through ops. This is the
// redo-apply direction; undo "restore a snapshot" entries are applied
// identically (an undo entry is just a Set/BufCpy carrying the
// pre-image as its value), so Process serves both logs.
func (l *Log) Process() {
	l.ForeachEntry(func(e Entry) bool {
		l.applyEntry(e)
		return true
	})
}

func (l *Log) applyEntry(e Entry) {
	dst := l.res.ToPtr(e.Offset)
	switch e.Type {
	case layout.EntrySet:
		*(*uint64)(dst) = e.Value
		l.ops.Persist(dst, 8)
	case layout.EntryAnd:
		*(*uint64)(dst) &= e.Value
		l.ops.Persist(dst, 8)
	case layout.EntryOr:
		*(*uint64)(dst) |= e.Value
		l.ops.Persist(dst, 8)
	case layout.EntryBufSet:
		if len(e.Data) > 0 {
			l.ops.Memset(dst, e.Data[0], uint64(len(e.Data)), 0)
		}
	case layout.EntryBufCpy:
		if len(e.Data) > 0 {
			buf := make([]byte, len(e.Data))
			copy(buf, e.Data)
			l.ops.Memcpy(dst, dataPtr(buf), uint64(len(buf)), 0)
		}
	}
}

// Range is a pool-relative byte range, used by ApplyExcluding to carve
// out sub-ranges a caller needs left untouched.
type Range struct {
	Offset uint64
	Size   uint64
}

func (r Range) end() uint64 { return r.Offset + r.Size }

func overlapsAny(excludes []Range, offset, size uint64) bool {
	end := offset + size
	for _, r := range excludes {
		if offset < r.end() && r.Offset < end {
			return true
		}
	}
	return false
}

// subtractRanges returns the sub-ranges of [offset, offset+size) left
// after removing every range in excludes, in ascending order.
func subtractRanges(offset, size uint64, excludes []Range) []Range {
	segs := []Range{{Offset: offset, Size: size}}
	for _, ex := range excludes {
		var next []Range
		for _, s := range segs {
			next = append(next, subtractOne(s, ex)...)
		}
		segs = next
	}
	return segs
}

func subtractOne(s, ex Range) []Range {
	sEnd, exEnd := s.end(), ex.end()
	if ex.Offset >= sEnd || exEnd <= s.Offset {
		return []Range{s}
	}
	var out []Range
	if s.Offset < ex.Offset {
		out = append(out, Range{Offset: s.Offset, Size: ex.Offset - s.Offset})
	}
	if exEnd < sEnd {
		out = append(out, Range{Offset: exEnd, Size: sEnd - exEnd})
	}
	return out
}

// ApplyExcluding behaves like the entry-apply step of Process, except it
// leaves untouched any byte that falls within one of excludes. Used by
// undo replay when the transaction being rolled back still holds a lock
// over part of the range an entry would otherwise overwrite: the bytes
// under the lock must survive the rollback, since whoever took the lock
// depends on them holding the value written since the snapshot.
func (l *Log) ApplyExcluding(e Entry, excludes []Range) {
	if len(excludes) == 0 {
		l.applyEntry(e)
		return
	}
	switch e.Type {
	case layout.EntrySet, layout.EntryAnd, layout.EntryOr:
		if overlapsAny(excludes, e.Offset, 8) {
			return
		}
		l.applyEntry(e)
	case layout.EntryBufSet, layout.EntryBufCpy:
		l.applyBufExcluding(e, excludes)
	}
}

func (l *Log) applyBufExcluding(e Entry, excludes []Range) {
	if len(e.Data) == 0 {
		return
	}
	for _, seg := range subtractRanges(e.Offset, uint64(len(e.Data)), excludes) {
		if seg.Size == 0 {
			continue
		}
		dst := l.res.ToPtr(seg.Offset)
		relStart := seg.Offset - e.Offset
		switch e.Type {
		case layout.EntryBufSet:
			l.ops.Memset(dst, e.Data[0], seg.Size, 0)
		case layout.EntryBufCpy:
			chunk := e.Data[relStart : relStart+seg.Size]
			buf := make([]byte, len(chunk))
			copy(buf, chunk)
			l.ops.Memcpy(dst, dataPtr(buf), uint64(len(buf)), 0)
		}
	}
}
