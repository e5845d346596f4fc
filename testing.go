package kaio

import (
	"io"
	"math"
	"syscall"

	"github.com/behrlich/go-kaio/internal/ioctx"
	"github.com/behrlich/go-kaio/internal/uapi"
	"github.com/behrlich/go-kaio/reactor"
)

// MemoryKernel stands in for the kernel AIO context of a queue built with
// NewMemoryQueue. Reads execute synchronously against an io.ReaderAt during
// SubmitRead; their completions signal the queue's eventfd exactly as the
// kernel does, so dispatch still runs through the reactor.
type MemoryKernel struct {
	mem *ioctx.Memory
	q   *Queue
}

// NewMemoryQueue creates a queue whose reads are served from dev instead of
// the kernel. This is useful for unit testing code built on Queue without
// relying on native AIO being available.
func NewMemoryQueue(r reactor.Reactor, dev io.ReaderAt, maxConcurrentOperations int, options *Options) (*Queue, *MemoryKernel, error) {
	k := &MemoryKernel{}
	q, err := create(r, maxConcurrentOperations, options, func(entries uint32) (ioctx.Context, error) {
		k.mem = ioctx.NewMemory(dev, int(entries))
		return k.mem, nil
	})
	if err != nil {
		return nil, nil, err
	}
	k.q = q
	return q, k, nil
}

// Hold withholds completions until Release, so several can be delivered
// behind a single readiness event
func (k *MemoryKernel) Hold() {
	k.mem.Hold()
}

// Release publishes every withheld completion and returns how many there were
func (k *MemoryKernel) Release() int {
	return k.mem.Release()
}

// FailNextSubmit makes the next submission fail with errno
func (k *MemoryKernel) FailNextSubmit(errno syscall.Errno) {
	k.mem.FailNextSubmit(errno)
}

// FailNextGetEvents makes a future reap fail with errno. Calls queue up,
// one failure per reap, and the completions stay in the kernel.
func (k *MemoryKernel) FailNextGetEvents(errno syscall.Errno) {
	k.mem.FailNextGetEvents(errno)
}

// SetResult installs fn to rewrite each completion. fn receives the read's
// offset, length and the number of bytes actually read, and returns the
// kernel's res and res2 fields. Passing nil restores plain results.
func (k *MemoryKernel) SetResult(fn func(offset int64, length int, res int64) (int64, int64)) {
	if fn == nil {
		k.mem.SetOverride(nil)
		return
	}
	k.mem.SetOverride(func(cb *uapi.Iocb, ev *uapi.IOEvent) {
		ev.Res, ev.Res2 = fn(cb.Offset, int(cb.Nbytes), ev.Res)
	})
}

// InjectStray queues a completion whose tag matches no request and signals
// the queue's eventfd
func (k *MemoryKernel) InjectStray(res int64) {
	k.mem.Inject(uapi.IOEvent{Data: math.MaxUint64, Res: res}, k.q.Fd())
}

// InKernel returns the number of completions not yet reaped
func (k *MemoryKernel) InKernel() int {
	return k.mem.InKernel()
}

// Stats returns the number of reads submitted and completions reaped
func (k *MemoryKernel) Stats() (submitted, reaped uint64) {
	return k.mem.Stats()
}
