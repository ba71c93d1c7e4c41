package transport

import (
	"errors"
	"net"
	"syscall"
)

// DSCPExpedited маркировка Expedited Forwarding (RFC 3246) для голоса
const DSCPExpedited = 46

// ErrUnsupportedSocket возвращается для сокета без доступа к дескриптору
var ErrUnsupportedSocket = errors.New("сокет не поддерживает настройку опций")

// SetVoiceOptions устанавливает DSCP маркировку и приоритет сокета
// для голосового трафика
func SetVoiceOptions(conn net.PacketConn, dscp int) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return ErrUnsupportedSocket
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if err := setSockOptDSCP(fd, dscp); err != nil {
			sockErr = err
			return
		}
		sockErr = setSockOptPriority(fd)
	})
	if err != nil {
		return err
	}
	return sockErr
}
