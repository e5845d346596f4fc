package kaio

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Error represents a structured kaio error with context and errno mapping
type Error struct {
	Op    string        // Operation that failed (e.g., "io_setup", "io_submit")
	Fd    int           // Descriptor involved (-1 if not applicable)
	Code  ErrorCode     // High-level error category
	Errno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string        // Human-readable message
	Inner error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Fd >= 0 {
		parts = append(parts, fmt.Sprintf("fd=%d", e.Fd))
	}

	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", int(e.Errno)))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("kaio: %s (%s)", msg, strings.Join(parts, ", "))
	}

	return fmt.Sprintf("kaio: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches sentinels and other structured errors by code
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}

	return false
}

// Result returns the negated errno, the value SubmitRead reports on failure
func (e *Error) Result() int {
	if e.Errno == 0 {
		return -int(syscall.EIO)
	}
	return -int(e.Errno)
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodeInvalidParameters  ErrorCode = "invalid parameters"
	ErrCodeQueueFull          ErrorCode = "queue full"
	ErrCodeBusy               ErrorCode = "operations in flight"
	ErrCodeClosed             ErrorCode = "queue closed"
	ErrCodeNotSupported       ErrorCode = "operation not supported"
	ErrCodeBadDescriptor      ErrorCode = "bad file descriptor"
	ErrCodeResourceLimit      ErrorCode = "kernel resource limit reached"
	ErrCodePermissionDenied   ErrorCode = "permission denied"
	ErrCodeInsufficientMemory ErrorCode = "insufficient memory"
	ErrCodeIOError            ErrorCode = "I/O error"
)

// Sentinel errors for errors.Is
var (
	ErrInvalidParameters  = &Error{Fd: -1, Code: ErrCodeInvalidParameters}
	ErrQueueFull          = &Error{Fd: -1, Code: ErrCodeQueueFull}
	ErrBusy               = &Error{Fd: -1, Code: ErrCodeBusy}
	ErrClosed             = &Error{Fd: -1, Code: ErrCodeClosed}
	ErrNotSupported       = &Error{Fd: -1, Code: ErrCodeNotSupported}
	ErrBadDescriptor      = &Error{Fd: -1, Code: ErrCodeBadDescriptor}
	ErrResourceLimit      = &Error{Fd: -1, Code: ErrCodeResourceLimit}
	ErrPermissionDenied   = &Error{Fd: -1, Code: ErrCodePermissionDenied}
	ErrInsufficientMemory = &Error{Fd: -1, Code: ErrCodeInsufficientMemory}
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Fd:   -1,
		Code: code,
		Msg:  msg,
	}
}

// NewErrorWithErrno creates a new structured error with errno
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Fd:    -1,
		Code:  code,
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// NewFdError creates an error about a specific descriptor
func NewFdError(op string, fd int, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Fd:    fd,
		Code:  mapErrnoToCode(errno),
		Errno: errno,
		Msg:   errno.Error(),
		Inner: errno,
	}
}

// WrapError wraps an existing error with kaio context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	var ke *Error
	if errors.As(inner, &ke) {
		return &Error{
			Op:    op,
			Fd:    ke.Fd,
			Code:  ke.Code,
			Errno: ke.Errno,
			Msg:   ke.Msg,
			Inner: ke.Inner,
		}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:    op,
			Fd:    -1,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Fd:    -1,
		Code:  ErrCodeIOError,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// mapErrnoToCode maps syscall errno to kaio error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EINVAL, syscall.EFAULT:
		return ErrCodeInvalidParameters
	case syscall.EAGAIN:
		return ErrCodeQueueFull
	case syscall.EBUSY:
		return ErrCodeBusy
	case syscall.ENOSYS, syscall.EOPNOTSUPP, syscall.ESPIPE:
		return ErrCodeNotSupported
	case syscall.EBADF:
		return ErrCodeBadDescriptor
	case syscall.EMFILE, syscall.ENFILE:
		return ErrCodeResourceLimit
	case syscall.EPERM, syscall.EACCES:
		return ErrCodePermissionDenied
	case syscall.ENOMEM:
		return ErrCodeInsufficientMemory
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Errno == errno
	}
	return false
}
