//go:build unix

package transport

import (
	"golang.org/x/sys/unix"
)

// setSockOptDSCP устанавливает DSCP маркировку для QoS
func setSockOptDSCP(fd uintptr, dscp int) error {
	// DSCP находится в старших 6 битах TOS поля
	tos := dscp << 2

	if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tos); err != nil {
		// IPv6-only сокет отвергает IP_TOS
		return unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
	}
	// для dual-stack сокета дополнительно, ошибка не критична
	_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tos)
	return nil
}
