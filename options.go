package kaio

import (
	"github.com/behrlich/go-kaio/internal/constants"
	"github.com/behrlich/go-kaio/internal/ioctx"
)

// Engine selects the kernel facility a Queue submits to
type Engine = ioctx.Engine

const (
	// EngineNative uses Linux native AIO (io_setup/io_submit/io_getevents)
	EngineNative = ioctx.EngineNative
	// EngineIOURing uses io_uring; binaries must be built with -tags giouring
	EngineIOURing = ioctx.EngineIOURing
)

// ParseEngine maps "native", "aio", "io_uring" or "uring" to an Engine
func ParseEngine(name string) (Engine, error) {
	return ioctx.ParseEngine(name)
}

// Logger is the logging surface a Queue writes to. *logging.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures queue creation
type Options struct {
	// Engine selects the kernel facility (default EngineNative)
	Engine Engine

	// BatchSize is the number of completions reaped per poll call
	// (default DefaultBatchSize, capped at 1024)
	BatchSize int

	// Logger for lifecycle and error messages (if nil, uses the process default logger)
	Logger Logger

	// Observer for metrics collection (if nil, records into Queue.Metrics)
	Observer Observer
}

// DefaultOptions returns the options Create uses when given nil
func DefaultOptions() *Options {
	return &Options{
		Engine:    EngineNative,
		BatchSize: constants.DefaultBatchSize,
	}
}

func (o *Options) batchSize() int {
	switch {
	case o.BatchSize <= 0:
		return constants.DefaultBatchSize
	case o.BatchSize > constants.MaxBatchSize:
		return constants.MaxBatchSize
	default:
		return o.BatchSize
	}
}
