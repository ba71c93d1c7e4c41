package rtp

import "errors"

var (
	// ErrMalformedPacket возвращается для буфера, который не может быть RTP пакетом
	ErrMalformedPacket = errors.New("некорректный RTP пакет")

	// ErrPayloadTooLarge возвращается если payload больше максимального размера
	ErrPayloadTooLarge = errors.New("payload превышает максимальный размер")

	// ErrInvalidPayloadSize возвращается для нулевого или слишком большого максимума payload
	ErrInvalidPayloadSize = errors.New("недопустимый максимальный размер payload")
)
