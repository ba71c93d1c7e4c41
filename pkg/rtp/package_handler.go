package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// PackageHandler собирает исходящие RTP пакеты и хранит состояние сессии:
// номер последовательности, смещение timestamp и SSRC.
//
// Используется два буфера размером HeaderSize+MaximumPayloadSize:
// исходящий (CreatePackage) и рабочий (Decode, CreateSilencePackage).
// Срезы, которые возвращают методы, ссылаются на эти буферы и
// перезаписываются следующим вызовом соответствующего метода.
//
// PackageHandler не потокобезопасен: отправка и прием выполняются
// из одного аудио callback'а.
type PackageHandler struct {
	maxPayloadSize int
	payloadType    PayloadType

	sequenceNumber  uint16
	timestampOffset uint32
	ssrc            uint32

	startTime time.Time
	now       func() time.Time

	outBuffer         []byte
	workBuffer        []byte
	actualPayloadSize int
}

// NewPackageHandler создает обработчик с фиксированным максимальным
// размером payload. Начальный номер последовательности, смещение
// timestamp и SSRC выбираются случайно.
func NewPackageHandler(maxPayloadSize int, payloadType PayloadType) (*PackageHandler, error) {
	if maxPayloadSize <= 0 || maxPayloadSize > MaxPacketSize-HeaderSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPayloadSize, maxPayloadSize)
	}

	ssrc, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации SSRC: %w", err)
	}
	offset, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации смещения timestamp: %w", err)
	}
	var seq uint16
	if err := binary.Read(rand.Reader, binary.BigEndian, &seq); err != nil {
		return nil, fmt.Errorf("ошибка генерации номера последовательности: %w", err)
	}

	h := &PackageHandler{
		maxPayloadSize:  maxPayloadSize,
		payloadType:     payloadType,
		sequenceNumber:  seq,
		timestampOffset: offset,
		ssrc:            ssrc,
		now:             time.Now,
		outBuffer:       make([]byte, HeaderSize+maxPayloadSize),
		workBuffer:      make([]byte, HeaderSize+maxPayloadSize),
	}
	// time.Now несет монотонные показания, Sub не зависит от перевода часов
	h.startTime = h.now()
	return h, nil
}

func randomUint32() (uint32, error) {
	var val uint32
	if err := binary.Read(rand.Reader, binary.BigEndian, &val); err != nil {
		return 0, err
	}
	return val, nil
}

// CreatePackage собирает пакет из заголовка и копии payload.
// Номер последовательности увеличивается на 1 при каждом вызове.
// Возвращаемый срез валиден до следующего вызова CreatePackage.
func (h *PackageHandler) CreatePackage(payload []byte) ([]byte, error) {
	if len(payload) > h.maxPayloadSize {
		return nil, fmt.Errorf("%w: %d байт (максимум %d)", ErrPayloadTooLarge, len(payload), h.maxPayloadSize)
	}

	hdr := NewHeader()
	hdr.SetPayloadType(h.payloadType)
	hdr.SetSequenceNumber(h.sequenceNumber)
	hdr.SetTimestamp(h.CurrentTimestamp())
	hdr.SetSSRC(h.ssrc)
	h.sequenceNumber++

	copy(h.outBuffer, hdr[:])
	n := copy(h.outBuffer[HeaderSize:], payload)
	return h.outBuffer[:HeaderSize+n], nil
}

// CreateSilencePackage записывает в рабочий буфер пакет тишины:
// заголовок только с версией 2 и нулевой payload максимальной длины.
// Состояние сессии не меняется.
func (h *PackageHandler) CreateSilencePackage() []byte {
	hdr := NewHeader()
	copy(h.workBuffer, hdr[:])
	clear(h.workBuffer[HeaderSize:])
	h.actualPayloadSize = h.maxPayloadSize
	return h.workBuffer
}

// Decode копирует принятый пакет в рабочий буфер.
// Header и Payload после этого описывают принятый пакет.
func (h *PackageHandler) Decode(packet []byte) error {
	if !IsValidPacket(packet) {
		return fmt.Errorf("%w: длина %d", ErrMalformedPacket, len(packet))
	}
	payloadSize := len(packet) - HeaderSize
	if payloadSize > h.maxPayloadSize {
		return fmt.Errorf("%w: %d байт (максимум %d)", ErrPayloadTooLarge, payloadSize, h.maxPayloadSize)
	}
	copy(h.workBuffer, packet)
	h.actualPayloadSize = payloadSize
	return nil
}

// WorkBuffer возвращает весь рабочий буфер (заголовок + максимальный payload)
func (h *PackageHandler) WorkBuffer() []byte {
	return h.workBuffer
}

// Header возвращает заголовок пакета из рабочего буфера
func (h *PackageHandler) Header() Header {
	var hdr Header
	copy(hdr[:], h.workBuffer[:HeaderSize])
	return hdr
}

// Payload возвращает payload рабочего буфера с учетом фактического размера
func (h *PackageHandler) Payload() []byte {
	return h.workBuffer[HeaderSize : HeaderSize+h.actualPayloadSize]
}

// SetActualPayloadSize задает фактический размер payload в рабочем буфере
func (h *PackageHandler) SetActualPayloadSize(size int) error {
	if size < 0 || size > h.maxPayloadSize {
		return fmt.Errorf("%w: %d байт (максимум %d)", ErrPayloadTooLarge, size, h.maxPayloadSize)
	}
	h.actualPayloadSize = size
	return nil
}

// ActualPayloadSize возвращает фактический размер payload рабочего буфера
func (h *PackageHandler) ActualPayloadSize() int {
	return h.actualPayloadSize
}

// CurrentTimestamp возвращает случайное смещение плюс миллисекунды с момента создания
func (h *PackageHandler) CurrentTimestamp() uint32 {
	elapsed := h.now().Sub(h.startTime).Milliseconds()
	return h.timestampOffset + uint32(elapsed)
}

// SSRC возвращает идентификатор источника, неизменный на время жизни обработчика
func (h *PackageHandler) SSRC() uint32 { return h.ssrc }

// SequenceNumber возвращает номер, который получит следующий пакет
func (h *PackageHandler) SequenceNumber() uint16 { return h.sequenceNumber }

// PayloadType возвращает текущий тип payload
func (h *PackageHandler) PayloadType() PayloadType { return h.payloadType }

// SetPayloadType меняет тип payload для следующих пакетов
func (h *PackageHandler) SetPayloadType(pt PayloadType) { h.payloadType = pt & maskPayloadType }

// MaximumPayloadSize возвращает максимальный размер payload
func (h *PackageHandler) MaximumPayloadSize() int { return h.maxPayloadSize }

// MaximumPackageSize возвращает максимальный размер пакета с заголовком
func (h *PackageHandler) MaximumPackageSize() int { return HeaderSize + h.maxPayloadSize }

// HeaderSize возвращает размер заголовка
func (h *PackageHandler) HeaderSize() int { return HeaderSize }
