//go:build linux

package ioctx

import (
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-kaio/internal/uapi"
)

// nativeContext implements Context using Linux native AIO
type nativeContext struct {
	ctxID   uintptr
	entries uint32
}

// newNative calls io_setup(2) for a context holding entries operations
func newNative(entries uint32) (Context, error) {
	// io_setup requires the context id to be zeroed on entry
	var ctxID uintptr
	_, _, errno := unix.Syscall(unix.SYS_IO_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&ctxID)), 0)
	if errno != 0 {
		return nil, errno
	}
	return &nativeContext{ctxID: ctxID, entries: entries}, nil
}

// Submit calls io_submit(2)
func (c *nativeContext) Submit(iocbs []*uapi.Iocb) (int, error) {
	if len(iocbs) == 0 {
		return 0, nil
	}
	if c.ctxID == 0 {
		return 0, unix.EINVAL
	}
	for {
		n, _, errno := unix.Syscall(unix.SYS_IO_SUBMIT, c.ctxID, uintptr(len(iocbs)), uintptr(unsafe.Pointer(unsafe.SliceData(iocbs))))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return 0, errno
		}
		return int(n), nil
	}
}

// GetEvents calls io_getevents(2)
func (c *nativeContext) GetEvents(events []uapi.IOEvent, minNr int, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if c.ctxID == 0 {
		return 0, unix.EINVAL
	}

	var (
		n     uintptr
		errno syscall.Errno
	)
	if timeout >= 0 {
		ts := unix.NsecToTimespec(int64(timeout))
		n, _, errno = unix.Syscall6(unix.SYS_IO_GETEVENTS,
			c.ctxID,
			uintptr(minNr),
			uintptr(len(events)),
			uintptr(unsafe.Pointer(unsafe.SliceData(events))),
			uintptr(unsafe.Pointer(&ts)),
			0)
	} else {
		n, _, errno = unix.Syscall6(unix.SYS_IO_GETEVENTS,
			c.ctxID,
			uintptr(minNr),
			uintptr(len(events)),
			uintptr(unsafe.Pointer(unsafe.SliceData(events))),
			0,
			0)
	}
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// Close calls io_destroy(2)
func (c *nativeContext) Close() error {
	if c.ctxID == 0 {
		return nil
	}
	_, _, errno := unix.Syscall(unix.SYS_IO_DESTROY, c.ctxID, 0, 0)
	c.ctxID = 0
	if errno != 0 {
		return errno
	}
	return nil
}
