package kaio

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("create", ErrCodeInvalidParameters, "capacity must be positive")

	if err.Op != "create" {
		t.Errorf("Expected Op=create, got %s", err.Op)
	}

	if err.Code != ErrCodeInvalidParameters {
		t.Errorf("Expected Code=ErrCodeInvalidParameters, got %s", err.Code)
	}

	expected := "kaio: capacity must be positive (op=create)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestFdErrorMessage(t *testing.T) {
	err := NewFdError("io_submit", 7, syscall.EBADF)

	expected := fmt.Sprintf("kaio: %s (op=io_submit, fd=7, errno=%d)", syscall.EBADF.Error(), int(syscall.EBADF))
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if err.Code != ErrCodeBadDescriptor {
		t.Errorf("Expected Code=ErrCodeBadDescriptor, got %s", err.Code)
	}

	if err.Result() != -int(syscall.EBADF) {
		t.Errorf("Expected Result()=%d, got %d", -int(syscall.EBADF), err.Result())
	}
}

func TestErrorResultWithoutErrno(t *testing.T) {
	err := NewError("submit", ErrCodeIOError, "boom")
	if err.Result() != -int(syscall.EIO) {
		t.Errorf("Expected Result()=-EIO, got %d", err.Result())
	}
}

func TestWrapError(t *testing.T) {
	err := WrapError("io_setup", syscall.ENOSYS)

	if err.Code != ErrCodeNotSupported {
		t.Errorf("Expected Code=ErrCodeNotSupported, got %s", err.Code)
	}

	if err.Errno != syscall.ENOSYS {
		t.Errorf("Expected Errno=ENOSYS, got %v", err.Errno)
	}

	if !errors.Is(err, syscall.ENOSYS) {
		t.Error("Expected wrapped error to satisfy errors.Is for ENOSYS")
	}

	if WrapError("noop", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestWrapErrorFmtWrapped(t *testing.T) {
	inner := fmt.Errorf("epoll ctl add: %w", syscall.EPERM)
	err := WrapError("register", inner)

	if err.Errno != syscall.EPERM {
		t.Errorf("Expected Errno=EPERM through fmt wrapping, got %v", err.Errno)
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("Expected wrapped EPERM to match ErrPermissionDenied")
	}
}

func TestWrapErrorRewrapsStructured(t *testing.T) {
	orig := NewFdError("submit", 3, syscall.EAGAIN)
	err := WrapError("retry", orig)

	if err.Op != "retry" {
		t.Errorf("Expected Op=retry, got %s", err.Op)
	}
	if err.Fd != 3 || err.Errno != syscall.EAGAIN || err.Code != ErrCodeQueueFull {
		t.Errorf("Expected fd, errno and code preserved, got %+v", err)
	}
}

func TestWrapErrorPlain(t *testing.T) {
	err := WrapError("register", errors.New("reactor: closed"))
	if err.Code != ErrCodeIOError {
		t.Errorf("Expected Code=ErrCodeIOError, got %s", err.Code)
	}
	if err.Errno != 0 {
		t.Errorf("Expected no errno, got %v", err.Errno)
	}
}

func TestSentinelErrors(t *testing.T) {
	structuredErr := &Error{Code: ErrCodeBusy}

	if !errors.Is(structuredErr, ErrBusy) {
		t.Error("Structured error should match sentinel via errors.Is")
	}

	if errors.Is(structuredErr, ErrClosed) {
		t.Error("Structured error should not match a different sentinel")
	}

	if ErrQueueFull.Error() != "kaio: queue full" {
		t.Errorf("Expected sentinel error message, got %q", ErrQueueFull.Error())
	}

	wrappedErr := fmt.Errorf("context: %w", WrapError("io_submit", syscall.EAGAIN))
	if !errors.Is(wrappedErr, ErrQueueFull) {
		t.Error("Wrapped EAGAIN should match ErrQueueFull")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("close", ErrCodeBusy, "2 operations in flight")

	if !IsCode(err, ErrCodeBusy) {
		t.Error("IsCode should return true for matching code")
	}

	if IsCode(err, ErrCodeIOError) {
		t.Error("IsCode should return false for non-matching code")
	}

	if IsCode(nil, ErrCodeBusy) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestIsErrno(t *testing.T) {
	err := WrapError("io_getevents", syscall.EIO)

	if !IsErrno(err, syscall.EIO) {
		t.Error("IsErrno should return true for matching errno")
	}

	if IsErrno(err, syscall.EPERM) {
		t.Error("IsErrno should return false for non-matching errno")
	}

	if IsErrno(nil, syscall.EIO) {
		t.Error("IsErrno should return false for nil error")
	}
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected ErrorCode
	}{
		{syscall.EINVAL, ErrCodeInvalidParameters},
		{syscall.EAGAIN, ErrCodeQueueFull},
		{syscall.EBUSY, ErrCodeBusy},
		{syscall.ENOSYS, ErrCodeNotSupported},
		{syscall.ESPIPE, ErrCodeNotSupported},
		{syscall.EBADF, ErrCodeBadDescriptor},
		{syscall.EMFILE, ErrCodeResourceLimit},
		{syscall.EPERM, ErrCodePermissionDenied},
		{syscall.ENOMEM, ErrCodeInsufficientMemory},
		{syscall.EIO, ErrCodeIOError},
	}

	for _, tc := range testCases {
		code := mapErrnoToCode(tc.errno)
		if code != tc.expected {
			t.Errorf("mapErrnoToCode(%v) = %s, want %s", tc.errno, code, tc.expected)
		}
	}
}
