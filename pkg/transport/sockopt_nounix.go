//go:build !unix

package transport

func setSockOptDSCP(uintptr, int) error {
	return ErrUnsupportedSocket
}
