//go:build !linux

package ioctx

import "syscall"

// newNative is only available on Linux
func newNative(entries uint32) (Context, error) {
	return nil, syscall.ENOSYS
}
