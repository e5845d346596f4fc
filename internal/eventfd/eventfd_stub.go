//go:build !linux

package eventfd

import "errors"

var errUnsupported = errors.New("eventfd: this platform is not supported")

// EventFD is unavailable outside Linux
type EventFD struct{}

// New returns an error for unsupported platforms
func New() (*EventFD, error) { return nil, errUnsupported }

func (e *EventFD) Fd() int                { return -1 }
func (e *EventFD) Signal() error          { return errUnsupported }
func (e *EventFD) Reset() (uint64, error) { return 0, errUnsupported }
func (e *EventFD) Close() error           { return nil }

// Signal returns an error for unsupported platforms
func Signal(fd int) error { return errUnsupported }
