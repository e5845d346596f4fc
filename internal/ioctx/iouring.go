//go:build linux && giouring

package ioctx

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/behrlich/go-kaio/internal/logging"
	"github.com/behrlich/go-kaio/internal/uapi"
)

// ringContext implements Context on top of io_uring. The eventfd named by
// an iocb's IOCB_FLAG_RESFD is registered on the ring once, after which the
// kernel signals it for every CQE. io_uring has no secondary result, so Res2
// is always zero.
type ringContext struct {
	ring    *giouring.Ring
	entries uint32
	eventfd int
	logger  *logging.Logger
}

// newIOURing creates a ring with entries submission slots
func newIOURing(entries uint32) (Context, error) {
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create io_uring: %w", err)
	}
	return &ringContext{
		ring:    ring,
		entries: entries,
		eventfd: -1,
		logger:  logging.Default(),
	}, nil
}

func (c *ringContext) registerEventFD(fd int) error {
	if c.eventfd == fd {
		return nil
	}
	if c.eventfd >= 0 {
		return fmt.Errorf("io_uring already signals eventfd %d, cannot switch to %d", c.eventfd, fd)
	}
	if _, err := c.ring.RegisterEventFd(fd); err != nil {
		return err
	}
	c.eventfd = fd
	c.logger.Debug("registered eventfd on io_uring", "eventfd", fd)
	return nil
}

// Submit queues one read SQE per iocb and enters the kernel once
func (c *ringContext) Submit(iocbs []*uapi.Iocb) (int, error) {
	if c.ring == nil {
		return 0, syscall.EINVAL
	}
	queued := 0
	for _, cb := range iocbs {
		if cb.Opcode != uapi.IOCB_CMD_PREAD {
			return 0, syscall.EINVAL
		}
		if fd, ok := cb.EventFD(); ok {
			if err := c.registerEventFD(fd); err != nil {
				return 0, err
			}
		}
		sqe := c.ring.GetSQE()
		if sqe == nil {
			break
		}
		sqe.PrepareRead(int(cb.Fildes), uintptr(cb.Buf), uint32(cb.Nbytes), uint64(cb.Offset))
		sqe.UserData = cb.Data
		queued++
	}
	if queued == 0 {
		return 0, syscall.EAGAIN
	}
	n, err := c.ring.Submit()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetEvents reaps completed CQEs. Only non-blocking polls are supported;
// completions are always announced through the registered eventfd.
func (c *ringContext) GetEvents(events []uapi.IOEvent, minNr int, timeout time.Duration) (int, error) {
	if c.ring == nil {
		return 0, syscall.EINVAL
	}
	n := 0
	for n < len(events) {
		cqe, err := c.ring.PeekCQE()
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
				break
			}
			return n, err
		}
		events[n] = uapi.IOEvent{
			Data: cqe.UserData,
			Res:  int64(cqe.Res),
		}
		c.ring.CQESeen(cqe)
		n++
	}
	return n, nil
}

// Close tears down the ring
func (c *ringContext) Close() error {
	if c.ring == nil {
		return nil
	}
	c.ring.QueueExit()
	c.ring = nil
	return nil
}
