package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// SenderConfig параметры отправки
type SenderConfig struct {
	Name       string
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Sender отправляет готовые RTP пакеты на удаленный адрес.
// WritePacket вызывается из аудио callback'а: на UDP запись в сокет
// не ждет сети, ошибки учитываются и возвращаются без повторов.
type Sender struct {
	conn    net.PacketConn
	remote  atomic.Pointer[net.UDPAddr]
	logger  *slog.Logger
	metrics *senderMetrics
	errors  atomic.Uint64
}

// NewSender создает отправитель поверх сокета. Сокет может быть общим
// с Listener (симметричный RTP), владельцем остается вызывающий.
func NewSender(conn net.PacketConn, remote *net.UDPAddr, config SenderConfig) (*Sender, error) {
	if conn == nil {
		return nil, errors.New("сокет обязателен")
	}
	if config.Name == "" {
		config.Name = "rtp"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sender{
		conn: conn,
		logger: logger.With(
			slog.String("component", "rtp_sender"),
			slog.String("stream", config.Name),
		),
		metrics: newSenderMetrics(config.Registerer, config.Name),
	}
	if remote != nil {
		s.remote.Store(remote)
	}
	return s, nil
}

// SetRemote меняет адрес получателя
func (s *Sender) SetRemote(address string) error {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("ошибка разрешения удаленного адреса: %w", err)
	}
	s.remote.Store(addr)
	return nil
}

// Remote возвращает текущий адрес получателя
func (s *Sender) Remote() *net.UDPAddr {
	return s.remote.Load()
}

// WritePacket отправляет пакет целиком одной датаграммой
func (s *Sender) WritePacket(packet []byte) error {
	remote := s.remote.Load()
	if remote == nil {
		return errors.New("удаленный адрес не установлен")
	}

	n, err := s.conn.WriteTo(packet, remote)
	if err != nil {
		classified := Classify("write", err)
		s.metrics.errors.WithLabelValues(classified.Type.String()).Inc()
		// первая ошибка логируется, дальше только счетчик
		if s.errors.Add(1) == 1 {
			s.logger.Warn("ошибка отправки RTP", slog.String("error", classified.Error()))
		}
		return classified
	}

	s.metrics.sent.Inc()
	s.metrics.bytes.Add(float64(n))
	return nil
}

// ErrorCount количество ошибок отправки
func (s *Sender) ErrorCount() uint64 {
	return s.errors.Load()
}
