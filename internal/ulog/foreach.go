package ulog

import (
	"unsafe"

	"github.com/arjenvos/pmemobj/internal/layout"
)

// decodeAt decodes the entry beginning at byte offset off within rec's
// data region. ok is false at the terminator.
func decodeAt(rec *Log, off uint64) (e Entry, ok bool) {
	ptr := unsafe.Add(rec.hdr.Data(), off)
	word := *(*uint64)(ptr)
	offset, t := layout.UnpackOffsetType(word)
	if offset == 0 && word == 0 {
		return Entry{}, false
	}
	if t.IsBufEntry() {
		bh := layout.EntryBufHeaderAt(ptr)
		data := make([]byte, bh.Size)
		copy(data, unsafe.Slice((*byte)(bh.Payload()), int(bh.Size)))
		return Entry{Type: t, Offset: offset, Data: data}, true
	}
	v := layout.EntryValAt(ptr)
	return Entry{Type: t, Offset: offset, Value: v.Value}, true
}

// ForeachEntry walks every live entry across this record and its
// continuation chain, invoking cb with each. cb returns false to stop
// early. It returns the number of live bytes found in the first record
// (the caller uses this to know where the next Store should land).
func (l *Log) ForeachEntry(cb func(Entry) bool) (firstRecordUsed uint64) {
	rec := l
	var used uint64
	first := true
	for rec != nil {
		var off uint64
		for off < rec.hdr.Capacity {
			e, ok := decodeAt(rec, off)
			if !ok {
				break
			}
			if first {
				used = off + e.WireSize()
			}
			if !cb(e) {
				return used
			}
			off += e.WireSize()
		}
		rec = rec.Next()
		first = false
	}
	return used
}

// UsedBytes returns how many bytes of this record's data region are
// occupied by live entries (i.e. the offset of the terminator).
func (l *Log) UsedBytes() uint64 {
	var off uint64
	for off < l.hdr.Capacity {
		e, ok := decodeAt(l, off)
		if !ok {
			break
		}
		off += e.WireSize()
	}
	return off
}
