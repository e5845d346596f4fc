//go:build !linux || !giouring

package ioctx

import "fmt"

// newIOURing is available when built with -tags giouring
func newIOURing(entries uint32) (Context, error) {
	return nil, fmt.Errorf("giouring not enabled; build with -tags giouring")
}
