//go:build linux

// Package eventfd wraps the Linux eventfd used as a readiness beacon between
// kernel completion queues and a readiness-based reactor
package eventfd

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-kaio/internal/constants"
)

// EventFD is a non-blocking, close-on-exec eventfd counter
type EventFD struct {
	fd int
}

// New creates an eventfd initialised to zero
func New() (*EventFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EventFD{fd: fd}, nil
}

// Fd returns the underlying descriptor
func (e *EventFD) Fd() int {
	return e.fd
}

// Signal adds one to the counter, making the descriptor readable
func (e *EventFD) Signal() error {
	return Signal(e.fd)
}

// Reset consumes the counter so the descriptor stops being readable.
// It returns the value that was read; a counter that is already zero
// yields 0 and no error.
func (e *EventFD) Reset() (uint64, error) {
	var buf [constants.EventfdCounterSize]byte
	for {
		n, err := unix.Read(e.fd, buf[:])
		switch err {
		case nil:
			if n != len(buf) {
				return 0, fmt.Errorf("eventfd short read: %d bytes", n)
			}
			return binary.NativeEndian.Uint64(buf[:]), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		default:
			return 0, err
		}
	}
}

// Close closes the descriptor. Closing twice is a no-op.
func (e *EventFD) Close() error {
	if e.fd < 0 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	return err
}

// Signal adds one to the counter of the eventfd fd
func Signal(fd int) error {
	var buf [constants.EventfdCounterSize]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
