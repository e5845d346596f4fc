// Package ioctx provides kernel asynchronous I/O contexts: a fixed-capacity
// queue that accepts iocbs and reports completions separately
package ioctx

import (
	"fmt"
	"time"

	"github.com/behrlich/go-kaio/internal/logging"
	"github.com/behrlich/go-kaio/internal/uapi"
)

// Context is a kernel asynchronous I/O submission/completion context
type Context interface {
	// Submit hands iocbs to the kernel and returns how many were accepted.
	// The kernel copies each iocb during the call; the buffers they point
	// at must stay valid until the matching completion is reaped.
	Submit(iocbs []*uapi.Iocb) (int, error)

	// GetEvents reaps between minNr and len(events) completions. A zero
	// timeout polls without blocking; a negative timeout blocks until minNr
	// completions are available.
	GetEvents(events []uapi.IOEvent, minNr int, timeout time.Duration) (int, error)

	// Close destroys the context
	Close() error
}

// Engine selects the kernel facility backing a Context
type Engine int

const (
	// EngineNative uses Linux native AIO (io_setup/io_submit/io_getevents)
	EngineNative Engine = iota
	// EngineIOURing uses io_uring via giouring (requires -tags giouring)
	EngineIOURing
)

func (e Engine) String() string {
	switch e {
	case EngineNative:
		return "native"
	case EngineIOURing:
		return "io_uring"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// ParseEngine maps an engine name to an Engine
func ParseEngine(name string) (Engine, error) {
	switch name {
	case "", "native", "aio":
		return EngineNative, nil
	case "io_uring", "iouring", "uring":
		return EngineIOURing, nil
	default:
		return 0, fmt.Errorf("unknown engine %q", name)
	}
}

// Config contains configuration for creating a context
type Config struct {
	Entries uint32 // Maximum operations in flight
	Engine  Engine // Kernel facility to use
}

// New creates a new Context for the configured engine
func New(config Config) (Context, error) {
	logger := logging.Default()
	logger.Debug("creating aio context", "entries", config.Entries, "engine", config.Engine.String())

	var (
		c   Context
		err error
	)
	switch config.Engine {
	case EngineNative:
		c, err = newNative(config.Entries)
	case EngineIOURing:
		c, err = newIOURing(config.Entries)
	default:
		err = fmt.Errorf("unknown engine %d", int(config.Engine))
	}
	if err != nil {
		logger.Error("failed to create aio context", "engine", config.Engine.String(), "error", err)
		return nil, err
	}

	logger.Debug("created aio context", "entries", config.Entries, "engine", config.Engine.String())
	return c, nil
}
