package rtp

import (
	"encoding/binary"
	"fmt"
)

// Размеры и константы фиксированного заголовка RFC 3550
const (
	// HeaderSize размер RTP заголовка без списка CSRC
	HeaderSize = 12

	// Version версия RTP, всегда 2
	Version = 2

	shiftVersion   = 6
	shiftPadding   = 5
	shiftExtension = 4
	shiftMarker    = 7

	maskVersion     = 0x03
	maskCSRCCount   = 0x0F
	maskPayloadType = 0x7F
)

// Header фиксированный 12-байтовый RTP заголовок.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|V=2|P|X|  CC   |M|     PT      |       sequence number         |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                           timestamp                           |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|           synchronization source (SSRC) identifier            |
//	+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//
// Байты хранятся в сетевом порядке независимо от платформы. Однобитовые
// флаги устанавливаются аддитивно (OR): сеттер не сбрасывает уже
// установленный флаг. Для сброса нужен новый заголовок из NewHeader.
type Header [HeaderSize]byte

// NewHeader возвращает обнуленный заголовок с версией 2
func NewHeader() Header {
	var h Header
	h[0] = Version << shiftVersion
	return h
}

// ReadHeader копирует первые 12 байт буфера в заголовок
func ReadHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("%w: %d байт (минимум %d)", ErrMalformedPacket, len(buf), HeaderSize)
	}
	copy(h[:], buf[:HeaderSize])
	return h, nil
}

// Version возвращает поле версии
func (h *Header) Version() uint8 {
	return (h[0] >> shiftVersion) & maskVersion
}

// Padding возвращает флаг padding
func (h *Header) Padding() bool {
	return (h[0]>>shiftPadding)&0x1 == 1
}

// SetPadding устанавливает флаг padding (аддитивно)
func (h *Header) SetPadding(padded bool) {
	if padded {
		h[0] |= 1 << shiftPadding
	}
}

// Extension возвращает флаг расширения заголовка
func (h *Header) Extension() bool {
	return (h[0]>>shiftExtension)&0x1 == 1
}

// SetExtension устанавливает флаг расширения (аддитивно).
// Само тело расширения не поддерживается.
func (h *Header) SetExtension(extension bool) {
	if extension {
		h[0] |= 1 << shiftExtension
	}
}

// CSRCCount возвращает 4-битовый счетчик CSRC
func (h *Header) CSRCCount() uint8 {
	return h[0] & maskCSRCCount
}

// SetCSRCCount записывает счетчик CSRC (старшие биты отбрасываются)
func (h *Header) SetCSRCCount(count uint8) {
	h[0] = h[0]&^maskCSRCCount | count&maskCSRCCount
}

// Marker возвращает флаг marker
func (h *Header) Marker() bool {
	return (h[1]>>shiftMarker)&0x1 == 1
}

// SetMarker устанавливает флаг marker (аддитивно)
func (h *Header) SetMarker(marker bool) {
	if marker {
		h[1] |= 1 << shiftMarker
	}
}

// PayloadType возвращает 7-битовый тип payload
func (h *Header) PayloadType() PayloadType {
	return PayloadType(h[1] & maskPayloadType)
}

// SetPayloadType записывает тип payload, флаг marker не затрагивается
func (h *Header) SetPayloadType(pt PayloadType) {
	h[1] = h[1]&^maskPayloadType | uint8(pt)&maskPayloadType
}

// SequenceNumber возвращает номер последовательности
func (h *Header) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(h[2:4])
}

// SetSequenceNumber записывает номер последовательности в сетевом порядке
func (h *Header) SetSequenceNumber(seq uint16) {
	binary.BigEndian.PutUint16(h[2:4], seq)
}

// Timestamp возвращает RTP timestamp (миллисекунды)
func (h *Header) Timestamp() uint32 {
	return binary.BigEndian.Uint32(h[4:8])
}

// SetTimestamp записывает timestamp в сетевом порядке
func (h *Header) SetTimestamp(ts uint32) {
	binary.BigEndian.PutUint32(h[4:8], ts)
}

// SSRC возвращает идентификатор источника синхронизации
func (h *Header) SSRC() uint32 {
	return binary.BigEndian.Uint32(h[8:12])
}

// SetSSRC записывает SSRC в сетевом порядке
func (h *Header) SetSSRC(ssrc uint32) {
	binary.BigEndian.PutUint32(h[8:12], ssrc)
}

// String возвращает строковое представление заголовка для логов
func (h *Header) String() string {
	return fmt.Sprintf("RTP{v=%d p=%t x=%t cc=%d m=%t pt=%s seq=%d ts=%d ssrc=%08x}",
		h.Version(), h.Padding(), h.Extension(), h.CSRCCount(), h.Marker(),
		h.PayloadType(), h.SequenceNumber(), h.Timestamp(), h.SSRC())
}
