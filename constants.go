package pmemobj

import "github.com/arjenvos/pmemobj/internal/constants"

// Re-exported sizing constants, for callers that need to reason about
// on-media layout without reaching into internal/constants directly.
const (
	CachelineSize   = constants.CachelineSize
	LaneTotalSize   = constants.LaneTotalSize
	MaxLayoutName   = constants.MaxLayoutNameLen
	PoolFormatMajor = constants.PoolFormatMajor
)
