//go:build !linux

package transport

// SO_PRIORITY есть только в Linux
func setSockOptPriority(uintptr) error {
	return nil
}
