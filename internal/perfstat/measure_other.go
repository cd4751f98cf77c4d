//go:build !linux

package perfstat

import "errors"

var errUnsupported = errors.New("hardware counters are only supported on linux")

// Measure runs f once. Hardware counters are unavailable on this platform.
func Measure(f func()) (*Counters, error) {
	f()
	return nil, errUnsupported
}
