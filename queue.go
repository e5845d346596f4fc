// Package kaio dispatches Linux asynchronous disk reads into a readiness
// reactor. Reads are submitted to a kernel AIO context; every completion
// bumps an eventfd registered with the reactor, and the queue's handler
// drains all available completions and invokes the callbacks on the
// reactor goroutine.
package kaio

import (
	"errors"
	"fmt"
	"runtime"
	"syscall"
	"time"

	"github.com/behrlich/go-kaio/internal/eventfd"
	"github.com/behrlich/go-kaio/internal/ioctx"
	"github.com/behrlich/go-kaio/internal/logging"
	"github.com/behrlich/go-kaio/internal/queue"
	"github.com/behrlich/go-kaio/internal/uapi"
	"github.com/behrlich/go-kaio/reactor"
)

// ReadCallback receives the outcome of an accepted read: the number of bytes
// read (possibly short at end of file) or a negated errno. It runs on the
// reactor goroutine exactly once per accepted submission. The buffer passed
// to SubmitRead belongs to the caller again once the callback returns.
type ReadCallback func(result int64, userData any)

// request is the bookkeeping for one outstanding read
type request struct {
	iocb      uapi.Iocb
	cb        ReadCallback
	userData  any
	buf       []byte
	pinner    runtime.Pinner
	submitted time.Time
}

// Queue is a fixed-capacity kernel AIO context bound to a reactor through an
// eventfd. A Queue is not safe for concurrent use: SubmitRead, Close and the
// completion callbacks all run on the reactor goroutine.
type Queue struct {
	kctx ioctx.Context
	efd  *eventfd.EventFD
	reg  reactor.Registration

	table *queue.Table[*request]
	iocbs [1]*uapi.Iocb

	// Reaped completions not yet delivered. A panicking callback leaves
	// the rest of its batch here for the next pass.
	events     []uapi.IOEvent
	head, tail int

	// Consecutive failed drains; logging is thinned while it stays high
	pollErrors int

	engine   Engine
	logger   Logger
	ioLog    *logging.Logger // set when logger is a *logging.Logger
	observer Observer
	metrics  *Metrics
	closed   bool
}

// Create builds a queue with room for maxConcurrentOperations outstanding
// reads and registers its eventfd with r. On failure nothing is left behind.
func Create(r reactor.Reactor, maxConcurrentOperations int, options *Options) (*Queue, error) {
	if options == nil {
		options = DefaultOptions()
	}
	engine := options.Engine
	return create(r, maxConcurrentOperations, options, func(entries uint32) (ioctx.Context, error) {
		return ioctx.New(ioctx.Config{Entries: entries, Engine: engine})
	})
}

func create(r reactor.Reactor, maxConcurrentOperations int, options *Options, newContext func(uint32) (ioctx.Context, error)) (_ *Queue, err error) {
	if r == nil {
		return nil, NewError("create", ErrCodeInvalidParameters, "nil reactor")
	}
	if maxConcurrentOperations <= 0 {
		return nil, &Error{
			Op:    "create",
			Fd:    -1,
			Code:  ErrCodeInvalidParameters,
			Errno: syscall.EINVAL,
			Msg:   fmt.Sprintf("maxConcurrentOperations must be positive, got %d", maxConcurrentOperations),
		}
	}
	if options == nil {
		options = DefaultOptions()
	}

	q := &Queue{
		table:   queue.NewTable[*request](maxConcurrentOperations),
		events:  make([]uapi.IOEvent, options.batchSize()),
		engine:  options.Engine,
		metrics: NewMetrics(),
	}
	if options.Observer != nil {
		q.observer = options.Observer
	} else {
		q.observer = NewMetricsObserver(q.metrics)
	}

	defer func() {
		if err != nil {
			q.teardown()
		}
	}()

	q.kctx, err = newContext(uint32(maxConcurrentOperations))
	if err != nil {
		werr := WrapError("io_setup", err)
		if werr.Errno == syscall.EAGAIN {
			// io_setup reports EAGAIN when fs.aio-max-nr is exhausted
			werr.Code = ErrCodeResourceLimit
		}
		return nil, werr
	}

	q.efd, err = eventfd.New()
	if err != nil {
		return nil, WrapError("eventfd", err)
	}

	if options.Logger != nil {
		q.logger = options.Logger
	} else {
		q.logger = logging.Default().WithQueue(q.efd.Fd())
	}
	q.ioLog, _ = q.logger.(*logging.Logger)

	q.reg, err = r.RegisterRead(q.efd.Fd(), q.dispatch)
	if err != nil {
		return nil, WrapError("register", err)
	}

	q.logger.Info("created queue",
		"capacity", maxConcurrentOperations,
		"engine", q.engine.String(),
		"batch", len(q.events),
		"eventfd", q.efd.Fd())
	return q, nil
}

// teardown releases whatever create or Close acquired, newest first, and
// returns the first error
func (q *Queue) teardown() error {
	var errs []error
	if q.reg != nil {
		errs = append(errs, q.reg.Close())
		q.reg = nil
	}
	if q.efd != nil {
		errs = append(errs, q.efd.Close())
		q.efd = nil
	}
	if q.kctx != nil {
		errs = append(errs, q.kctx.Close())
		q.kctx = nil
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// SubmitRead submits a positioned read of len(buf) bytes from fd at offset.
// On acceptance it returns 1 and a nil error, and cb will later be invoked
// exactly once. On rejection it returns a negated errno together with an
// *Error carrying that errno, and cb is never invoked. buf must not be
// touched until cb runs.
func (q *Queue) SubmitRead(cb ReadCallback, fd int, offset int64, buf []byte, userData any) (int, error) {
	if q.closed {
		return q.reject(&Error{Op: "submit", Fd: fd, Code: ErrCodeClosed, Errno: syscall.EBADF, Msg: "queue closed"})
	}
	if cb == nil {
		return q.reject(&Error{Op: "submit", Fd: fd, Code: ErrCodeInvalidParameters, Errno: syscall.EINVAL, Msg: "nil callback"})
	}
	if fd < 0 {
		return q.reject(NewFdError("submit", fd, syscall.EBADF))
	}
	if offset < 0 {
		return q.reject(&Error{Op: "submit", Fd: fd, Code: ErrCodeInvalidParameters, Errno: syscall.EINVAL, Msg: "negative offset"})
	}

	if q.table.Full() {
		return q.reject(&Error{
			Op:    "submit",
			Fd:    fd,
			Code:  ErrCodeQueueFull,
			Errno: syscall.EAGAIN,
			Msg:   fmt.Sprintf("%d operations in flight", q.table.Len()),
		})
	}
	req := &request{cb: cb, userData: userData, buf: buf}
	tag, _ := q.table.Acquire(req)

	req.iocb.PrepPread(fd, buf, offset)
	req.iocb.SetEventFD(q.reg.Fd())
	req.iocb.Data = tag
	if len(buf) > 0 {
		req.pinner.Pin(&buf[0])
	}
	req.submitted = time.Now()

	q.iocbs[0] = &req.iocb
	n, err := q.kctx.Submit(q.iocbs[:])
	q.iocbs[0] = nil
	if err == nil && n != 1 {
		err = syscall.EAGAIN
	}
	if err != nil {
		q.release(tag, req)
		var errno syscall.Errno
		if !errors.As(err, &errno) {
			return q.reject(WrapError("io_submit", err))
		}
		return q.reject(NewFdError("io_submit", fd, errno))
	}

	q.observer.ObserveSubmit(true)
	q.observer.ObserveInFlight(uint32(q.table.Len()))
	return n, nil
}

func (q *Queue) reject(err *Error) (int, error) {
	q.observer.ObserveSubmit(false)
	switch {
	case q.ioLog != nil:
		if q.ioLog.Enabled(logging.LevelDebug) {
			q.ioLog.WithError(err).Debug("read rejected", "fd", err.Fd, "code", string(err.Code))
		}
	case q.logger != nil:
		q.logger.Debug("read rejected", "op", err.Op, "fd", err.Fd, "errno", int(err.Errno), "code", string(err.Code))
	}
	return err.Result(), err
}

// release frees the slot and unpins the buffer
func (q *Queue) release(tag uint64, req *request) {
	q.table.Release(tag)
	req.pinner.Unpin()
	req.buf = nil
	req.cb = nil
	req.userData = nil
}

// dispatch is the reactor handler for the eventfd. It resets the counter
// before draining, so a completion landing mid-drain leaves the descriptor
// readable for the next pass. A pass that stops early, through a panicking
// callback or a failed reap, signals the eventfd again so the remainder is
// picked up by the next pass.
func (q *Queue) dispatch(int) bool {
	retry := false
	defer func() {
		if (retry || q.head < q.tail) && q.efd != nil {
			_ = q.efd.Signal()
		}
	}()

	if _, err := q.efd.Reset(); err != nil {
		q.logger.Warn("failed to reset eventfd", "error", err)
	}

	reaped := 0
	for {
		for q.head < q.tail {
			ev := q.events[q.head]
			q.head++
			q.complete(&ev)
		}

		n, err := q.kctx.GetEvents(q.events, 0, 0)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			q.pollErrors++
			if q.pollErrors == 1 || q.pollErrors%1024 == 0 {
				q.logger.Error("io_getevents failed, retrying on next pass",
					"error", err, "consecutive", q.pollErrors, "in_flight", q.table.Len())
			}
			retry = true
			break
		}
		q.pollErrors = 0
		if n == 0 {
			break
		}
		q.head, q.tail = 0, n
		reaped += n
	}

	q.observer.ObserveDrain(uint32(reaped))
	return true
}

// complete delivers one completion and releases its request afterwards,
// even if the callback panics
func (q *Queue) complete(ev *uapi.IOEvent) {
	req, ok := q.table.Lookup(ev.Data)
	if !ok {
		q.observer.ObserveUnknownTag()
		q.logger.Warn("completion for unknown request", "tag", ev.Data, "res", ev.Res, "res2", ev.Res2)
		return
	}
	defer q.release(ev.Data, req)

	result := ev.Result()
	latency := time.Since(req.submitted)
	q.observer.ObserveCompletion(result, uint64(latency))
	if q.ioLog != nil && q.ioLog.Enabled(logging.LevelDebug) {
		rlog := q.ioLog.WithRequest(ev.Data, uapi.OpName(req.iocb.Opcode))
		if result < 0 {
			rlog.IOError(req.iocb.Offset, int(req.iocb.Nbytes), syscall.Errno(-result))
		} else {
			rlog.IOComplete(req.iocb.Offset, int(req.iocb.Nbytes), result, latency)
		}
	}
	req.cb(result, req.userData)
}

// Close unregisters the eventfd, closes it and destroys the kernel context.
// It fails with ErrBusy and releases nothing while reads are in flight;
// wait for InFlight to reach zero first.
func (q *Queue) Close() error {
	if q.closed {
		return NewError("close", ErrCodeClosed, "queue already closed")
	}
	if n := q.table.Len(); n > 0 {
		return &Error{
			Op:    "close",
			Fd:    q.efd.Fd(),
			Code:  ErrCodeBusy,
			Errno: syscall.EBUSY,
			Msg:   fmt.Sprintf("%d operations in flight", n),
		}
	}

	q.closed = true
	fd := q.efd.Fd()
	q.metrics.Stop()
	if err := q.teardown(); err != nil {
		q.logger.Error("failed to close queue", "eventfd", fd, "error", err)
		return WrapError("close", err)
	}
	q.logger.Info("closed queue", "eventfd", fd, "max_in_flight", q.table.MaxInFlight())
	return nil
}

// InFlight returns the number of accepted reads whose callbacks have not yet
// returned
func (q *Queue) InFlight() int { return q.table.Len() }

// Cap returns the maximum number of concurrent reads
func (q *Queue) Cap() int { return q.table.Cap() }

// Fd returns the eventfd registered with the reactor, or -1 after Close
func (q *Queue) Fd() int {
	if q.efd == nil {
		return -1
	}
	return q.efd.Fd()
}

// Engine returns the kernel facility backing the queue
func (q *Queue) Engine() Engine { return q.engine }

// Metrics returns the queue's built-in metrics. They are only populated
// when Options.Observer was nil.
func (q *Queue) Metrics() *Metrics { return q.metrics }
