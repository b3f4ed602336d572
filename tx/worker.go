package tx

import "github.com/arjenvos/pmemobj/internal/lane"

// Worker holds the caller-owned lane.LaneInfo handle that lets
// repeated transactions from the same logical worker keep preferring
// the same lane. Go has no thread-local storage and goroutines aren't
// OS threads, so a Worker must be created once per concurrent caller
// (e.g. one per pool worker goroutine) and reused across that caller's
// transactions — sharing a single Worker across concurrent goroutines
// is a data race, the same way sharing one *os.File offset would be.
type Worker struct {
	info *lane.LaneInfo

	// active is the transaction currently open on this Worker, if any.
	// A Begin call while active is non-nil is a nested begin: it reuses
	// the same *Tx and pushes a new frame rather than acquiring a second
	// lane (see tx.Begin).
	active *Tx
}

// NewWorker returns a fresh Worker with no lane preference yet.
func NewWorker() *Worker {
	return &Worker{info: lane.NewLaneInfo()}
}
