package processor

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/rtp"
	pionrtp "github.com/pion/rtp"
)

// PacketWriter отправляет собранный RTP пакет. Срез валиден только
// на время вызова.
type PacketWriter interface {
	WritePacket(packet []byte) error
}

// PacketSource выдает принятые пакеты в порядке воспроизведения без
// ожидания (jitter.Buffer)
type PacketSource interface {
	Get() (*pionrtp.Packet, bool)
}

// RTPConfig параметры моста в RTP
type RTPConfig struct {
	Name        string
	PayloadType rtp.PayloadType
	// MaxPayloadSize максимум payload, 0 означает размер буфера потока
	MaxPayloadSize int
	// SilenceByte значение, которым заполняется payload при опустошении
	// jitter буфера (0xFF для μ-law, 0xD5 для A-law, 0 для линейного PCM)
	SilenceByte byte
	// Writer получатель исходящих пакетов, nil отключает отправку
	Writer PacketWriter
	// Source источник входящих пакетов, nil означает постоянную тишину
	Source PacketSource
	Logger *slog.Logger
}

// RTPStatistics счетчики моста
type RTPStatistics struct {
	PacketsSent     uint64
	SendErrors      uint64
	PacketsPlayed   uint64
	SilencePackets  uint64
	PayloadMismatch uint64
	Truncated       uint64
}

// RTP процессор в хвосте цепочки. На захвате упаковывает буфер в RTP
// пакет и передает его в PacketWriter. На воспроизведении берет
// следующий пакет из PacketSource и записывает его payload в буфер,
// при отсутствии пакета записывает тишину.
type RTP struct {
	audio.BaseProcessor

	config  RTPConfig
	handler *rtp.PackageHandler
	logger  *slog.Logger

	sent            atomic.Uint64
	sendErrors      atomic.Uint64
	played          atomic.Uint64
	silence         atomic.Uint64
	payloadMismatch atomic.Uint64
	truncated       atomic.Uint64
}

// NewRTP создает мост в RTP
func NewRTP(config RTPConfig) *RTP {
	if config.Name == "" {
		config.Name = "rtp"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RTP{
		BaseProcessor: audio.NewBaseProcessor(config.Name),
		config:        config,
		logger:        logger.With(slog.String("processor", config.Name)),
	}
}

// Configure создает новую RTP сессию: случайные SSRC, номер
// последовательности и смещение timestamp
func (r *RTP) Configure(cfg audio.Configuration) error {
	maxPayload := r.config.MaxPayloadSize
	if maxPayload == 0 {
		maxPayload = min(max(cfg.InputBufferBytes(), cfg.OutputBufferBytes()), rtp.MaxPacketSize-rtp.HeaderSize)
	}

	handler, err := rtp.NewPackageHandler(maxPayload, r.config.PayloadType)
	if err != nil {
		return fmt.Errorf("ошибка создания RTP сессии: %w", err)
	}
	r.handler = handler

	r.logger.Info("RTP сессия создана",
		slog.String("payload_type", r.config.PayloadType.String()),
		slog.Uint64("ssrc", uint64(handler.SSRC())),
		slog.Int("max_payload", maxPayload))
	return nil
}

func (r *RTP) CleanUp() error {
	r.handler = nil
	return nil
}

// Handler возвращает текущую RTP сессию, nil до Configure
func (r *RTP) Handler() *rtp.PackageHandler {
	return r.handler
}

// ProcessInput отправляет buf[:n] одним пакетом. Буфер не изменяется.
func (r *RTP) ProcessInput(buf []byte, n int, _ *audio.StreamInfo) int {
	if r.config.Writer == nil || r.handler == nil {
		return n
	}
	packet, err := r.handler.CreatePackage(buf[:n])
	if err != nil {
		r.sendFailed("ошибка сборки RTP пакета", err)
		return n
	}
	if err := r.config.Writer.WritePacket(packet); err != nil {
		r.sendFailed("ошибка отправки RTP пакета", err)
		return n
	}
	r.sent.Add(1)
	return n
}

// sendFailed учитывает ошибку, в лог попадает только первая
func (r *RTP) sendFailed(msg string, err error) {
	if r.sendErrors.Add(1) == 1 {
		r.logger.Warn(msg, slog.String("error", err.Error()))
	}
}

// ProcessOutput записывает в буфер payload следующего пакета или тишину
func (r *RTP) ProcessOutput(buf []byte, n int, _ *audio.StreamInfo) int {
	if r.handler == nil {
		return 0
	}
	if r.config.Source != nil {
		if packet, ok := r.config.Source.Get(); ok {
			if rtp.PayloadType(packet.PayloadType) == r.config.PayloadType {
				if len(packet.Payload) > len(buf) {
					r.truncated.Add(1)
				}
				r.played.Add(1)
				return copy(buf, packet.Payload)
			}
			r.payloadMismatch.Add(1)
		}
	}

	r.silence.Add(1)
	r.handler.CreateSilencePackage()
	size := min(len(buf), len(r.handler.Payload()))
	if r.config.SilenceByte == 0 {
		return copy(buf, r.handler.Payload())
	}
	for i := range buf[:size] {
		buf[i] = r.config.SilenceByte
	}
	return size
}

// Statistics возвращает снимок счетчиков
func (r *RTP) Statistics() RTPStatistics {
	return RTPStatistics{
		PacketsSent:     r.sent.Load(),
		SendErrors:      r.sendErrors.Load(),
		PacketsPlayed:   r.played.Load(),
		SilencePackets:  r.silence.Load(),
		PayloadMismatch: r.payloadMismatch.Load(),
		Truncated:       r.truncated.Load(),
	}
}
