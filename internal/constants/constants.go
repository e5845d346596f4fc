package constants

// Default configuration constants
const (
	// DefaultMaxEvents is the default kernel queue capacity
	DefaultMaxEvents = 128

	// DefaultBatchSize is the number of completions reaped per io_getevents call
	DefaultBatchSize = 32

	// MaxBatchSize caps the per-call reap buffer
	MaxBatchSize = 1024
)

// Direct I/O constants
const (
	// DirectIOAlignment is the buffer, offset and length alignment O_DIRECT expects
	DirectIOAlignment = 4096

	// DefaultReadSize is the default read size used by the cat tool (128KB)
	DefaultReadSize = 128 * 1024
)

// Eventfd constants
const (
	// EventfdCounterSize is the size of an eventfd counter read or write
	EventfdCounterSize = 8
)
