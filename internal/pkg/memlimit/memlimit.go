// Package memlimit caps the memory the process may use.
package memlimit

import (
	"errors"
	"runtime/debug"
)

var ErrUnsupported = errors.New("address space limit is not supported on this platform")

const mb = 1 << 20

// Apply sets the address space limit to limitMB megabytes and aligns the Go
// runtime soft limit with it. Zero disables both.
func Apply(limitMB int64) error {
	if limitMB <= 0 {
		return nil
	}
	debug.SetMemoryLimit(limitMB * mb)
	return setAddressSpace(uint64(limitMB) * mb)
}
