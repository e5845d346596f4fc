//go:build linux

package ioctx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-kaio/internal/eventfd"
	"github.com/behrlich/go-kaio/internal/uapi"
)

// newNativeOrSkip creates a native context, skipping where AIO is unavailable
// (seccomp-filtered containers, aio-max-nr exhausted).
func newNativeOrSkip(t *testing.T, entries uint32) Context {
	t.Helper()
	c, err := New(Config{Entries: entries, Engine: EngineNative})
	if err != nil {
		if errors.Is(err, syscall.ENOSYS) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EAGAIN) {
			t.Skipf("native AIO unavailable: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeTempFile(t *testing.T, data []byte) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNativeReadCompletes(t *testing.T) {
	c := newNativeOrSkip(t, 4)

	data := bytes.Repeat([]byte("kaio"), 2048) // 8KB
	f := writeTempFile(t, data)

	efd, err := eventfd.New()
	require.NoError(t, err)
	defer efd.Close()

	buf := make([]byte, 4096)
	var cb uapi.Iocb
	cb.PrepPread(int(f.Fd()), buf, 4096)
	cb.SetEventFD(efd.Fd())
	cb.Data = 0xfeed

	n, err := c.Submit([]*uapi.Iocb{&cb})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events := make([]uapi.IOEvent, 4)
	got, err := c.GetEvents(events, 1, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, got)
	assert.Equal(t, uint64(0xfeed), events[0].Data)
	assert.Equal(t, int64(4096), events[0].Result())
	assert.Equal(t, data[4096:], buf)

	v, err := efd.Reset()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v, "kernel should signal the eventfd once")

	got, err = c.GetEvents(events, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, got, "zero-timeout poll on an empty queue returns nothing")
}

func TestNativeSubmitPipeRejected(t *testing.T) {
	c := newNativeOrSkip(t, 4)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	// The write end is never readable, so the kernel rejects the iocb at
	// submission instead of parking a blocking pipe read.
	buf := make([]byte, 16)
	var cb uapi.Iocb
	cb.PrepPread(int(w.Fd()), buf, 0)

	n, err := c.Submit([]*uapi.Iocb{&cb})
	assert.ErrorIs(t, err, syscall.EBADF)
	assert.Zero(t, n)
}

func TestNativeCloseTwice(t *testing.T) {
	c := newNativeOrSkip(t, 1)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Submit([]*uapi.Iocb{{}})
	assert.ErrorIs(t, err, syscall.EINVAL)
}
