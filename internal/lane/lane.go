// Package lane implements the lane subsystem: a small set of
// (internal, external, undo) operation-context triples that
// transactions acquire exclusive use of for their duration, so
// concurrent transactions don't contend on a single shared log.
//
// A cyclic thread-local lane-info list is the classic way to remember
// which lane a caller last held, but Go has no portable thread-local
// storage and goroutines aren't OS threads, so this instead uses a
// caller-owned LaneInfo handle passed explicitly to Hold (the
// Descriptor keeps no index of these handles), and the scope-guard
// release closure Hold returns instead of a destructor.
package lane

import "github.com/arjenvos/pmemobj/internal/operation"

// Lane is one (internal, external, undo) operation-context triple.
type Lane struct {
	Internal *operation.Context
	External *operation.Context
	Undo     *operation.Context
}
