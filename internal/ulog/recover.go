package ulog

// Recover walks this record's chain at pool-open time and truncates it
// at the first record whose checksum doesn't validate against its own
// live-entry span: a crash can tear the write of a continuation record
// or its entries, but never a record that was already fully persisted
// and checksummed, so the first bad checksum marks the boundary between
// "committed before the crash" and "in flight during the crash". It
// returns the number of valid records found (including the first).
func (l *Log) Recover() int {
	var prev *Log
	rec := l
	count := 0
	for rec != nil {
		used := rec.UsedBytes()
		if !rec.Check(used) {
			if prev != nil {
				prev.SetNext(nil)
			}
			break
		}
		count++
		prev = rec
		rec = rec.Next()
	}
	return count
}
