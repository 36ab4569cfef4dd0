//go:build !linux

package gpio

import "errors"

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(opts Options) (*RealSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Start is not implemented on non-Linux platforms.
func (s *RealSource) Start(h Handler) error {
	return errors.New("gpio: not supported")
}

// Levels is not implemented on non-Linux platforms.
func (s *RealSource) Levels() (map[int]bool, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSource) Close() error {
	return nil
}
