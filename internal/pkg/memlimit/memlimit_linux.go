//go:build linux

package memlimit

import "golang.org/x/sys/unix"

// setAddressSpace lowers the soft RLIMIT_AS and keeps the current hard limit.
func setAddressSpace(limit uint64) error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return err
	}
	if rl.Max != unix.RLIM_INFINITY && limit > rl.Max {
		limit = rl.Max
	}
	rl.Cur = limit
	return unix.Setrlimit(unix.RLIMIT_AS, &rl)
}
