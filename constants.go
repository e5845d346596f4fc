package kaio

import "github.com/behrlich/go-kaio/internal/constants"

// Re-export constants for public API
const (
	DefaultMaxEvents  = constants.DefaultMaxEvents
	DefaultBatchSize  = constants.DefaultBatchSize
	DirectIOAlignment = constants.DirectIOAlignment
	DefaultReadSize   = constants.DefaultReadSize
)
