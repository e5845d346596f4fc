package kaio

import "github.com/behrlich/go-kaio/internal/queue"

// AlignedAlloc returns a zeroed buffer of size bytes whose address is a
// multiple of DirectIOAlignment, as O_DIRECT reads require
func AlignedAlloc(size int) []byte {
	return queue.AlignedAlloc(size)
}

// GetBuffer returns an aligned buffer of size bytes from a shared pool
func GetBuffer(size int) []byte {
	return queue.GetBuffer(size)
}

// PutBuffer returns a buffer obtained from GetBuffer to the pool. It must not
// be called while a read into the buffer is in flight.
func PutBuffer(buf []byte) {
	queue.PutBuffer(buf)
}
