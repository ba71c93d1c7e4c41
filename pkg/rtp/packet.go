package rtp

import "fmt"

// MaxPacketSize предел размера датаграммы (MTU Ethernet)
const MaxPacketSize = 1500

// IsValidPacket проверяет что буфер похож на RTP пакет.
//
// Это намеренно слабая эвристика: отвергается только буфер короче 12 байт
// или с версией, отличной от 2. Любые другие битовые шаблоны принимаются,
// поэтому часть не-RTP трафика может быть классифицирована как RTP.
func IsValidPacket(buf []byte) bool {
	if len(buf) < HeaderSize {
		return false
	}
	return buf[0]>>shiftVersion == Version
}

// ParsePacket разбирает пакет на заголовок и payload.
// Payload ссылается на память buf, копия не создается.
func ParsePacket(buf []byte) (Header, []byte, error) {
	if !IsValidPacket(buf) {
		return Header{}, nil, fmt.Errorf("%w: длина %d", ErrMalformedPacket, len(buf))
	}
	h, err := ReadHeader(buf)
	if err != nil {
		return h, nil, err
	}
	return h, buf[HeaderSize:], nil
}
