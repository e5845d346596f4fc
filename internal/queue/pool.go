package queue

import (
	"sync"
	"unsafe"

	"github.com/behrlich/go-kaio/internal/constants"
)

// BufferPool provides pooled, page-aligned byte slices for O_DIRECT reads.
// Uses size-bucketed pools with power-of-2 sizes (4KB, 64KB, 128KB, 1MB).
// Larger requests get a fresh aligned allocation that is never pooled.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

// Buffer size thresholds
const (
	size4k   = 4 * 1024
	size64k  = 64 * 1024
	size128k = 128 * 1024
	size1m   = 1024 * 1024
)

const alignment = constants.DirectIOAlignment

func newAligned(size int) *[]byte {
	b := AlignedAlloc(size)
	return &b
}

// globalPool is the shared buffer pool.
var globalPool = struct {
	pool4k   sync.Pool
	pool64k  sync.Pool
	pool128k sync.Pool
	pool1m   sync.Pool
}{
	pool4k:   sync.Pool{New: func() any { return newAligned(size4k) }},
	pool64k:  sync.Pool{New: func() any { return newAligned(size64k) }},
	pool128k: sync.Pool{New: func() any { return newAligned(size128k) }},
	pool1m:   sync.Pool{New: func() any { return newAligned(size1m) }},
}

// AlignedAlloc allocates size bytes starting on a DirectIOAlignment boundary.
// The returned slice has len == cap == size.
func AlignedAlloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	raw := make([]byte, size+alignment)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & (alignment - 1)); rem != 0 {
		off = alignment - rem
	}
	return raw[off : off+size : off+size]
}

// IsAligned reports whether buf starts on a DirectIOAlignment boundary
func IsAligned(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))&(alignment-1) == 0
}

// GetBuffer returns an aligned buffer of exactly the requested length.
// Caller must call PutBuffer when done.
func GetBuffer(size int) []byte {
	switch {
	case size <= 0:
		return nil
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	case size <= size128k:
		return (*globalPool.pool128k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	default:
		return AlignedAlloc(size)
	}
}

// PutBuffer returns a buffer to the pool.
// The buffer's capacity determines which pool it goes to.
func PutBuffer(buf []byte) {
	c := cap(buf)
	// Restore full capacity before returning to pool
	buf = buf[:c]
	if !IsAligned(buf) {
		return
	}
	switch c {
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	case size128k:
		globalPool.pool128k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
		// Buffers with non-standard capacity are not returned to pool
	}
}
