package nmea

import "io"

// NewTimeoutPort exposes the serial read wrapper to tests.
func NewTimeoutPort(port io.ReadCloser) io.ReadCloser {
	return newTimeoutPort(port)
}
