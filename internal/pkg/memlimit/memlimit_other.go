//go:build !linux

package memlimit

func setAddressSpace(uint64) error {
	return ErrUnsupported
}
