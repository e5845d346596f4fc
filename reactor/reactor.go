// Package reactor provides a single-threaded readiness reactor. Handlers
// registered for a descriptor run on the goroutine that drives the loop,
// one at a time, whenever the descriptor becomes readable.
package reactor

import "errors"

// ErrClosed is returned by operations on a closed loop
var ErrClosed = errors.New("reactor: closed")

// Handler is invoked when fd is readable. Returning false unregisters it.
type Handler func(fd int) bool

// Registration is a live read-readiness registration
type Registration interface {
	// Fd returns the registered descriptor
	Fd() int
	// Close unregisters the handler. It does not close the descriptor.
	Close() error
}

// Reactor accepts read-readiness registrations
type Reactor interface {
	RegisterRead(fd int, h Handler) (Registration, error)
}
