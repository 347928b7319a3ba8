// Package device defines a unified interface for the rover's line-oriented
// peripherals, currently the slcan motor adapter. It abstracts reading and
// writing line-based data with optional timeouts.
package device

import "time"

// Device is an abstract line-oriented peripheral. Implementations provide
// ReadLine/WriteLine operations with optional timeout.
type Device interface {
	// ReadLine reads a single line, stripped of its terminator.
	// If timeout > 0, it must return after timeout even if no data available.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine writes s followed by the device's line terminator.
	WriteLine(s string) error

	// Close closes the device and releases underlying resources.
	Close() error
}
