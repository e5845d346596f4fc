//go:build linux

package kaio

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-kaio/reactor"
)

// createNativeOrSkip creates a kernel-backed queue, skipping where native
// AIO is unavailable (seccomp-filtered containers, aio-max-nr exhausted)
func createNativeOrSkip(t *testing.T, l *reactor.Loop, capacity int) *Queue {
	t.Helper()
	q, err := Create(l, capacity, quietOptions())
	if err != nil {
		if IsCode(err, ErrCodeNotSupported) || IsCode(err, ErrCodePermissionDenied) || IsCode(err, ErrCodeResourceLimit) {
			t.Skipf("native AIO unavailable: %v", err)
		}
		require.NoError(t, err)
	}
	return q
}

func TestNativeReadsRegularFile(t *testing.T) {
	l := newLoop(t)
	q := createNativeOrSkip(t, l, 4)
	defer q.Close()

	// Last block is short
	data := pattern(2*4096 + 1808)
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	results := make(map[string]int64)
	bufs := make(map[string][]byte)
	for i, name := range []string{"first", "second", "third"} {
		buf := make([]byte, 4096)
		bufs[name] = buf
		n, err := q.SubmitRead(func(result int64, userData any) {
			results[userData.(string)] = result
		}, int(f.Fd()), int64(i*4096), buf, name)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	pollUntil(t, l, func() bool { return len(results) == 3 })
	assert.Equal(t, map[string]int64{"first": 4096, "second": 4096, "third": 1808}, results)
	assert.Equal(t, data[:4096], bufs["first"])
	assert.Equal(t, data[4096:8192], bufs["second"])
	assert.Equal(t, data[8192:], bufs["third"][:1808])
	assert.Zero(t, q.InFlight())
}

func TestNativeRejectsUnreadableDescriptor(t *testing.T) {
	l := newLoop(t)
	q := createNativeOrSkip(t, l, 4)
	defer q.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	// The write end of a pipe cannot service a positioned read
	called := false
	n, err := q.SubmitRead(func(int64, any) { called = true }, int(w.Fd()), 0, make([]byte, 4096), nil)
	assert.Negative(t, n)
	assert.True(t, IsErrno(err, syscall.Errno(-n)))
	assert.Zero(t, q.InFlight())

	_, err = l.Poll(50 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestNativeReadPastEOF(t *testing.T) {
	l := newLoop(t)
	q := createNativeOrSkip(t, l, 1)
	defer q.Close()

	path := filepath.Join(t.TempDir(), "small")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var result *int64
	_, err = q.SubmitRead(func(r int64, _ any) { result = &r }, int(f.Fd()), 1<<20, make([]byte, 4096), nil)
	require.NoError(t, err)

	pollUntil(t, l, func() bool { return result != nil })
	assert.Zero(t, *result)
}
