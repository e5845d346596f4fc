package ioctx

import (
	"errors"
	"io"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/eapache/queue"

	"github.com/behrlich/go-kaio/internal/eventfd"
	"github.com/behrlich/go-kaio/internal/uapi"
)

// Memory is an in-process Context that serves reads from an io.ReaderAt.
// Reads execute synchronously inside Submit; their completions are queued
// and, like the kernel, each one signals the iocb's eventfd. Holding
// completions lets tests batch several behind a single readiness event.
type Memory struct {
	mu       sync.Mutex
	dev      io.ReaderAt
	capacity int
	pending  *queue.Queue // completions ready to reap
	held     []heldEvent  // completions withheld until Release
	hold     bool
	inKernel int // submitted, not yet reaped
	closed   bool

	failSubmit syscall.Errno
	failReap   []syscall.Errno
	override   func(cb *uapi.Iocb, ev *uapi.IOEvent)

	submitted uint64
	reaped    uint64
}

type heldEvent struct {
	ev    uapi.IOEvent
	resfd int
}

// NewMemory creates a context with room for capacity in-flight operations
func NewMemory(dev io.ReaderAt, capacity int) *Memory {
	return &Memory{
		dev:      dev,
		capacity: capacity,
		pending:  queue.New(),
	}
}

// Hold withholds completions until Release is called
func (m *Memory) Hold() {
	m.mu.Lock()
	m.hold = true
	m.mu.Unlock()
}

// Release publishes every withheld completion in submission order and stops
// holding. It returns the number released.
func (m *Memory) Release() int {
	m.mu.Lock()
	held := m.held
	m.held = nil
	m.hold = false
	for _, h := range held {
		m.pending.Add(h.ev)
	}
	m.mu.Unlock()

	for _, h := range held {
		if h.resfd >= 0 {
			_ = eventfd.Signal(h.resfd)
		}
	}
	return len(held)
}

// FailNextSubmit makes the next Submit fail with errno
func (m *Memory) FailNextSubmit(errno syscall.Errno) {
	m.mu.Lock()
	m.failSubmit = errno
	m.mu.Unlock()
}

// FailNextGetEvents makes a future GetEvents fail with errno. Calls queue
// up: each failure is returned by one GetEvents call, in order.
func (m *Memory) FailNextGetEvents(errno syscall.Errno) {
	m.mu.Lock()
	m.failReap = append(m.failReap, errno)
	m.mu.Unlock()
}

// SetOverride installs a hook that may rewrite each completion before it is queued
func (m *Memory) SetOverride(fn func(cb *uapi.Iocb, ev *uapi.IOEvent)) {
	m.mu.Lock()
	m.override = fn
	m.mu.Unlock()
}

// InKernel returns the number of submitted operations not yet reaped
func (m *Memory) InKernel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inKernel
}

// Stats returns the number of operations submitted and reaped
func (m *Memory) Stats() (submitted, reaped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitted, m.reaped
}

// Inject queues a completion that no Submit produced and signals resfd when
// it is non-negative. The event occupies capacity until it is reaped.
func (m *Memory) Inject(ev uapi.IOEvent, resfd int) {
	m.mu.Lock()
	m.pending.Add(ev)
	m.inKernel++
	m.mu.Unlock()
	if resfd >= 0 {
		_ = eventfd.Signal(resfd)
	}
}

// Submit executes each read against the device
func (m *Memory) Submit(iocbs []*uapi.Iocb) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, syscall.EINVAL
	}
	if m.failSubmit != 0 {
		errno := m.failSubmit
		m.failSubmit = 0
		m.mu.Unlock()
		return 0, errno
	}

	var signal []int
	accepted := 0
	for _, cb := range iocbs {
		if m.inKernel >= m.capacity {
			break
		}
		if cb.Opcode != uapi.IOCB_CMD_PREAD {
			if accepted == 0 {
				m.mu.Unlock()
				return 0, syscall.EINVAL
			}
			break
		}

		ev := uapi.IOEvent{
			Data: cb.Data,
			Obj:  uint64(uintptr(unsafe.Pointer(cb))),
			Res:  m.read(cb),
		}
		if m.override != nil {
			m.override(cb, &ev)
		}

		resfd, ok := cb.EventFD()
		if !ok {
			resfd = -1
		}
		if m.hold {
			m.held = append(m.held, heldEvent{ev: ev, resfd: resfd})
		} else {
			m.pending.Add(ev)
			if resfd >= 0 {
				signal = append(signal, resfd)
			}
		}
		m.inKernel++
		m.submitted++
		accepted++
	}
	m.mu.Unlock()

	if accepted == 0 && len(iocbs) > 0 {
		return 0, syscall.EAGAIN
	}
	for _, fd := range signal {
		_ = eventfd.Signal(fd)
	}
	return accepted, nil
}

func (m *Memory) read(cb *uapi.Iocb) int64 {
	if cb.Nbytes == 0 {
		return 0
	}
	if cb.Offset < 0 {
		return -int64(syscall.EINVAL)
	}
	// aio_buf holds the address of a buffer the submitter has pinned; read
	// the field as a pointer rather than converting an integer.
	base := *(*unsafe.Pointer)(unsafe.Pointer(&cb.Buf))
	buf := unsafe.Slice((*byte)(base), cb.Nbytes)
	n, err := m.dev.ReadAt(buf, cb.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return -int64(errno)
		}
		return -int64(syscall.EIO)
	}
	return int64(n)
}

// GetEvents reaps queued completions. It never blocks: minNr and timeout
// are ignored and only completions already queued are returned. A failure
// queued by FailNextGetEvents leaves every completion in place.
func (m *Memory) GetEvents(events []uapi.IOEvent, minNr int, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, syscall.EINVAL
	}
	if len(m.failReap) > 0 {
		errno := m.failReap[0]
		m.failReap = m.failReap[1:]
		return 0, errno
	}
	n := 0
	for n < len(events) && m.pending.Length() > 0 {
		events[n] = m.pending.Remove().(uapi.IOEvent)
		n++
	}
	m.inKernel -= n
	m.reaped += uint64(n)
	return n, nil
}

// Close marks the context destroyed
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Compile-time interface check
var _ Context = (*Memory)(nil)
