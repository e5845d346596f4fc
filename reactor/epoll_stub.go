//go:build !linux

package reactor

import (
	"context"
	"errors"
	"time"
)

var errUnsupported = errors.New("reactor: epoll is only available on Linux")

// Loop is unavailable outside Linux
type Loop struct{}

// New returns an error for unsupported platforms
func New() (*Loop, error) { return nil, errUnsupported }

func (l *Loop) RegisterRead(fd int, h Handler) (Registration, error) {
	return nil, errUnsupported
}

func (l *Loop) Post(fn func()) error                    { return errUnsupported }
func (l *Loop) Poll(timeout time.Duration) (int, error) { return 0, errUnsupported }
func (l *Loop) Run(ctx context.Context) error           { return errUnsupported }
func (l *Loop) Close() error                            { return nil }
