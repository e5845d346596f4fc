//go:build linux

package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/behrlich/go-kaio/internal/eventfd"
	"github.com/behrlich/go-kaio/internal/logging"
)

const maxEpollEvents = 128

// Loop is an epoll-backed Reactor. Poll and Run must be driven from a single
// goroutine; Post may be called from any goroutine.
type Loop struct {
	epfd   int
	wake   *eventfd.EventFD
	events []unix.EpollEvent
	logger *logging.Logger

	mu       sync.Mutex
	handlers map[int]*registration
	tasks    *queue.Queue // func()
	closed   bool
}

type registration struct {
	loop *Loop
	fd   int
	h    Handler
	done bool
}

// New creates a loop with its own epoll instance and wakeup eventfd
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	wake, err := eventfd.New()
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("wake eventfd: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wake.Fd())}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wake.Fd(), &ev); err != nil {
		wake.Close()
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wake: %w", err)
	}

	return &Loop{
		epfd:     epfd,
		wake:     wake,
		events:   make([]unix.EpollEvent, maxEpollEvents),
		logger:   logging.Default(),
		handlers: make(map[int]*registration),
		tasks:    queue.New(),
	}, nil
}

// RegisterRead watches fd for read readiness, level-triggered
func (l *Loop) RegisterRead(fd int, h Handler) (Registration, error) {
	if h == nil {
		return nil, fmt.Errorf("reactor: nil handler for fd %d", fd)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if _, ok := l.handlers[fd]; ok {
		return nil, fmt.Errorf("reactor: fd %d already registered: %w", fd, unix.EEXIST)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, fmt.Errorf("epoll ctl add: %w", err)
	}

	r := &registration{loop: l, fd: fd, h: h}
	l.handlers[fd] = r
	l.logger.Debug("registered read handler", "fd", fd)
	return r, nil
}

func (r *registration) Fd() int { return r.fd }

func (r *registration) Close() error {
	return r.loop.unregister(r)
}

func (l *Loop) unregister(r *registration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true
	if l.handlers[r.fd] == r {
		delete(l.handlers, r.fd)
	}
	if l.closed {
		return nil
	}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, r.fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	l.logger.Debug("unregistered read handler", "fd", r.fd)
	return nil
}

// Post queues fn to run on the loop goroutine during the next Poll
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.tasks.Add(fn)
	l.mu.Unlock()
	return l.wake.Signal()
}

// Poll waits up to timeout for readiness and runs the ready handlers and any
// posted tasks. A negative timeout blocks. It returns the number of handlers
// invoked.
func (l *Loop) Poll(timeout time.Duration) (int, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	n, err := unix.EpollWait(l.epfd, l.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(l.events[i].Fd)
		if fd == l.wake.Fd() {
			l.runTasks()
			continue
		}

		l.mu.Lock()
		r := l.handlers[fd]
		l.mu.Unlock()
		if r == nil {
			continue
		}

		dispatched++
		if !l.invoke(r) {
			if err := r.Close(); err != nil {
				l.logger.Warn("failed to unregister handler", "fd", fd, "error", err)
			}
		}
	}
	return dispatched, nil
}

// invoke runs a handler, keeping it registered if it panics
func (l *Loop) invoke(r *registration) (keep bool) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("read handler panicked", "fd", r.fd, "panic", p)
			keep = true
		}
	}()
	return r.h(r.fd)
}

func (l *Loop) runTasks() {
	if _, err := l.wake.Reset(); err != nil {
		l.logger.Warn("failed to reset wake eventfd", "error", err)
	}

	l.mu.Lock()
	tasks := make([]func(), 0, l.tasks.Length())
	for l.tasks.Length() > 0 {
		tasks = append(tasks, l.tasks.Remove().(func()))
	}
	l.mu.Unlock()

	for _, fn := range tasks {
		l.runTask(fn)
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("posted task panicked", "panic", p)
		}
	}()
	fn()
}

// Run polls until ctx is done or the loop is closed
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.wake.Signal() })
	defer stop()

	for ctx.Err() == nil {
		if _, err := l.Poll(-1); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Close releases the epoll instance and wakeup eventfd. Registered
// descriptors are not closed. Call it from the loop goroutine or after Run
// has returned.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	pending := len(l.handlers)
	l.handlers = nil
	l.mu.Unlock()

	if pending > 0 {
		l.logger.Debug("closing reactor with registered handlers", "count", pending)
	}
	err := unix.Close(l.epfd)
	if werr := l.wake.Close(); err == nil {
		err = werr
	}
	return err
}

// Compile-time interface check
var _ Reactor = (*Loop)(nil)
