//go:build linux

package transport

import "golang.org/x/sys/unix"

// voicePriority значение SO_PRIORITY для интерактивного аудио
const voicePriority = 6

// setSockOptPriority повышает приоритет сокета в очередях ядра
func setSockOptPriority(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PRIORITY, voicePriority)
}
