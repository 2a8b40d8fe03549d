//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/quad-decoder/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevReader is not available on non-Linux platforms.
type CdevReader struct{}

// NewCdevReader returns an error on non-Linux platforms.
func NewCdevReader(chip string, offsets [logic.NumGroups][]int, bias string) (*CdevReader, error) {
	return nil, errUnsupported
}

// ReadGroup is not implemented on non-Linux platforms.
func (r *CdevReader) ReadGroup(g logic.Group) (byte, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *CdevReader) Close() error {
	return nil
}

// RPiReader is not available on non-Linux platforms.
type RPiReader struct{}

// NewRPiReader returns an error on non-Linux platforms.
func NewRPiReader(offsets [logic.NumGroups][]int, bias string) (*RPiReader, error) {
	return nil, errUnsupported
}

// ReadGroup is not implemented on non-Linux platforms.
func (r *RPiReader) ReadGroup(g logic.Group) (byte, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RPiReader) Close() error {
	return nil
}
