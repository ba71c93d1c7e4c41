package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/config"
	"github.com/arzzra/voice_engine/pkg/jitter"
	"github.com/arzzra/voice_engine/pkg/processor"
	"github.com/arzzra/voice_engine/pkg/rtp"
	"github.com/arzzra/voice_engine/pkg/transport"
)

const streamName = "rtp"

// call двусторонний звонок: захват -> gain -> G.711 -> RTP -> сеть и
// сеть -> jitter буфер -> RTP -> G.711 -> gain -> воспроизведение
type call struct {
	engine   *audio.Engine
	buffer   *jitter.Buffer
	tracker  *rtp.SourceTracker
	listener *transport.Listener
	sender   *transport.Sender
	bridge   *processor.RTP
	logger   *slog.Logger
}

func newCall(cfg *config.Config, drv audio.Driver, logger *slog.Logger, reg prometheus.Registerer) (*call, error) {
	buffer, err := jitter.NewBuffer(cfg.Jitter.Config())
	if err != nil {
		return nil, err
	}
	if reg != nil {
		if err := reg.Register(jitter.NewCollector(buffer, streamName)); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрик jitter буфера: %w", err)
		}
	}

	tracker := rtp.NewSourceTracker()
	listener, err := transport.Listen(cfg.RTP.ListenAddress, transport.Tee(buffer, tracker), transport.ListenerConfig{
		Name:        streamName,
		ReadTimeout: cfg.RTP.ReadTimeout,
		DSCP:        cfg.RTP.DSCP,
		Logger:      logger,
		Registerer:  reg,
	})
	if err != nil {
		return nil, err
	}

	remote, err := net.ResolveUDPAddr("udp", cfg.RTP.RemoteAddress)
	if err != nil {
		listener.Shutdown()
		return nil, fmt.Errorf("некорректный адрес собеседника: %w", err)
	}
	// симметричный RTP: отправка с того же сокета, на котором идет прием
	sender, err := transport.NewSender(listener.Conn(), remote, transport.SenderConfig{
		Name:       streamName,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		listener.Shutdown()
		return nil, err
	}

	law := cfg.Codec.G711Law()
	bridge := processor.NewRTP(processor.RTPConfig{
		Name:           "rtp",
		PayloadType:    law.PayloadType(),
		MaxPayloadSize: cfg.RTP.MaxPayloadSize,
		SilenceByte:    law.SilenceByte(),
		Writer:         sender,
		Source:         buffer,
		Logger:         logger,
	})
	chain := []audio.Processor{
		processor.NewGain("gain", cfg.Audio.InputGain, cfg.Audio.OutputGain),
		processor.NewG711("g711", law),
		bridge,
	}
	if cfg.Audio.Profile {
		chain = processor.Profile(reg, chain...)
	}

	engine := audio.NewEngine(drv, audio.EngineConfig{
		Name:       "voicecall",
		Logger:     logger,
		Registerer: reg,
	})
	for _, p := range chain {
		if err := engine.AddProcessor(p); err != nil {
			listener.Shutdown()
			return nil, err
		}
	}

	in, out, err := drv.DefaultDevices()
	if err != nil {
		listener.Shutdown()
		return nil, fmt.Errorf("ошибка получения устройств по умолчанию: %w", err)
	}
	if err := engine.SetConfiguration(cfg.Audio.Configuration(in, out)); err != nil {
		listener.Shutdown()
		return nil, err
	}

	return &call{
		engine:   engine,
		buffer:   buffer,
		tracker:  tracker,
		listener: listener,
		sender:   sender,
		bridge:   bridge,
		logger:   logger.With(slog.String("component", "call")),
	}, nil
}

// Start запускает прием и дуплексный поток
func (c *call) Start() error {
	if err := c.listener.StartUp(); err != nil {
		return err
	}
	if err := c.engine.StartDuplex(); err != nil {
		return errors.Join(err, c.listener.Shutdown())
	}
	c.logger.Info("звонок начат",
		slog.String("local", c.listener.LocalAddr().String()),
		slog.String("remote", c.sender.Remote().String()),
		slog.String("configuration", c.engine.Configuration().String()))
	return nil
}

// Stop останавливает поток, затем прием. Ошибки объединяются.
func (c *call) Stop() error {
	engineErr := c.engine.Stop()
	listenerErr := c.listener.Shutdown()
	c.buffer.Stop()

	rtpStats := c.bridge.Statistics()
	jitterStats := c.buffer.Statistics()
	source := c.tracker.Statistics()
	c.logger.Info("звонок завершен",
		slog.Uint64("packets_sent", rtpStats.PacketsSent),
		slog.Uint64("send_errors", rtpStats.SendErrors),
		slog.Uint64("packets_played", rtpStats.PacketsPlayed),
		slog.Uint64("silence_packets", rtpStats.SilencePackets),
		slog.Uint64("packets_received", jitterStats.Received),
		slog.Uint64("packets_late", jitterStats.Late),
		slog.Uint64("underruns", jitterStats.Underruns),
		slog.Int64("packets_lost", source.Lost),
		slog.Float64("jitter_ms", source.Jitter),
		slog.Uint64("processor_panics", c.engine.PanicCount()))

	return errors.Join(engineErr, listenerErr)
}

// writeOrder печатает порядок обработки цепочки
func (c *call) writeOrder(w io.Writer) error {
	return c.engine.WriteProcessorOrder(w)
}
