//go:build linux

package eventfd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func readable(t *testing.T, fd int) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	require.NoError(t, err)
	return n == 1 && fds[0].Revents&unix.POLLIN != 0
}

func TestNewIsNonBlockingCloseOnExec(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	flags, err := unix.FcntlInt(uintptr(e.Fd()), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK, "eventfd should be non-blocking")

	fdFlags, err := unix.FcntlInt(uintptr(e.Fd()), unix.F_GETFD, 0)
	require.NoError(t, err)
	assert.NotZero(t, fdFlags&unix.FD_CLOEXEC, "eventfd should be close-on-exec")

	assert.False(t, readable(t, e.Fd()), "new eventfd should start at zero")
}

func TestSignalAndReset(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Signal())
	require.NoError(t, e.Signal())
	require.NoError(t, Signal(e.Fd()))
	assert.True(t, readable(t, e.Fd()))

	v, err := e.Reset()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v, "counter aggregates signals")
	assert.False(t, readable(t, e.Fd()), "reset should clear readiness")

	v, err = e.Reset()
	require.NoError(t, err)
	assert.Zero(t, v, "reset of an empty counter does not block")
}

func TestCloseTwice(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, -1, e.Fd())
}
