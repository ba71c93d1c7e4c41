package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/arzzra/voice_engine/pkg/rtp"
	"github.com/prometheus/client_golang/prometheus"
)

// Ошибки жизненного цикла Listener
var (
	ErrAlreadyStarted = errors.New("listener уже запущен")
	ErrListenerClosed = errors.New("listener остановлен")
)

// PacketSink получатель принятых датаграмм. Put вызывается из горутины
// приема, срез валиден только на время вызова.
type PacketSink interface {
	Put(packet []byte) error
}

// ListenerConfig параметры приема
type ListenerConfig struct {
	// Name имя потока в логах и метриках
	Name string
	// ReadTimeout период опроса сокета, ограничивает время реакции на Shutdown
	ReadTimeout time.Duration
	// MaxPacketSize размер рабочего буфера приема
	MaxPacketSize int
	// DSCP маркировка исходящих пакетов сокета, 0 отключает
	DSCP int

	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// DefaultListenerConfig возвращает конфигурацию по умолчанию
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Name:          "rtp",
		ReadTimeout:   100 * time.Millisecond,
		MaxPacketSize: rtp.MaxPacketSize,
		DSCP:          DSCPExpedited,
	}
}

func (c *ListenerConfig) applyDefaults() {
	def := DefaultListenerConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.MaxPacketSize <= 0 {
		c.MaxPacketSize = def.MaxPacketSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate проверяет конфигурацию
func (c ListenerConfig) Validate() error {
	if c.MaxPacketSize > 0 && c.MaxPacketSize < rtp.HeaderSize {
		return fmt.Errorf("размер буфера приема меньше RTP заголовка: %d", c.MaxPacketSize)
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("DSCP вне диапазона 0..63: %d", c.DSCP)
	}
	return nil
}

// Listener принимает RTP датаграммы в одной фоновой горутине и передает
// прошедшие эвристическую проверку в PacketSink.
//
// Сокет опрашивается с таймаутом чтения: таймауты и временные ошибки
// повторяются, любая другая ошибка завершает цикл и возвращается из Shutdown.
type Listener struct {
	conn   net.PacketConn
	sink   PacketSink
	config ListenerConfig
	buf    []byte

	mu      sync.Mutex
	started bool
	closed  bool
	err     error

	stop    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *listenerMetrics
}

// Listen привязывает UDP сокет к адресу и создает Listener поверх него
func Listen(address string, sink PacketSink, config ListenerConfig) (*Listener, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания UDP сокета %s: %w", address, err)
	}
	if config.DSCP != 0 {
		if err := SetVoiceOptions(conn, config.DSCP); err != nil {
			// без QoS маркировки поток остается работоспособным
			logger := config.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("не удалось настроить сокет для голоса",
				slog.String("address", address),
				slog.String("error", err.Error()))
		}
	}
	l, err := NewListener(conn, sink, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// NewListener создает Listener поверх готового сокета.
// Listener становится владельцем сокета и закрывает его в Shutdown.
func NewListener(conn net.PacketConn, sink PacketSink, config ListenerConfig) (*Listener, error) {
	if conn == nil || sink == nil {
		return nil, errors.New("сокет и получатель пакетов обязательны")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &Listener{
		conn:   conn,
		sink:   sink,
		config: config,
		buf:    make([]byte, config.MaxPacketSize),
		stop:   make(chan struct{}),
		logger: config.Logger.With(
			slog.String("component", "rtp_listener"),
			slog.String("stream", config.Name),
		),
		metrics: newListenerMetrics(config.Registerer, config.Name),
	}, nil
}

// Conn возвращает сокет, например для отправки через Sender
func (l *Listener) Conn() net.PacketConn {
	return l.conn
}

// LocalAddr возвращает локальный адрес сокета
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// StartUp запускает горутину приема. Повторный запуск недопустим.
func (l *Listener) StartUp() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrListenerClosed
	}
	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true

	l.wg.Add(1)
	go l.run()

	l.logger.Info("прием RTP запущен", slog.String("address", l.conn.LocalAddr().String()))
	return nil
}

// Shutdown останавливает прием, закрывает сокет и дожидается завершения
// горутины. После возврата прием не выполняется. Возвращает ошибку,
// завершившую цикл приема, если она была.
func (l *Listener) Shutdown() error {
	l.mu.Lock()
	if l.closed {
		err := l.err
		l.mu.Unlock()
		return err
	}
	l.closed = true
	close(l.stop)
	l.mu.Unlock()

	closeErr := l.conn.Close()
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		l.err = errors.Join(l.err, fmt.Errorf("ошибка закрытия сокета: %w", closeErr))
	}
	l.logger.Info("прием RTP остановлен")
	return l.err
}

func (l *Listener) stopping() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *Listener) run() {
	defer l.wg.Done()

	for !l.stopping() {
		if err := l.conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout)); err != nil {
			if !l.stopping() {
				l.fail(Classify("set read deadline", err))
			}
			return
		}

		n, _, err := l.conn.ReadFrom(l.buf)
		if err != nil {
			if l.stopping() {
				return
			}
			classified := Classify("read", err)
			if classified.Retryable {
				if classified.Type != ErrorTypeTimeout {
					l.metrics.readErrors.WithLabelValues(classified.Type.String()).Inc()
					l.logger.Debug("временная ошибка приема", slog.String("error", classified.Error()))
				}
				continue
			}
			l.fail(classified)
			return
		}

		packet := l.buf[:n]
		if !rtp.IsValidPacket(packet) {
			l.metrics.invalid.Inc()
			continue
		}
		l.metrics.received.Inc()

		if err := l.sink.Put(packet); err != nil {
			l.metrics.sinkErrors.Inc()
			l.logger.Debug("пакет отклонен получателем", slog.String("error", err.Error()))
		}
	}
}

func (l *Listener) fail(err *ClassifiedError) {
	l.metrics.readErrors.WithLabelValues(err.Type.String()).Inc()
	l.logger.Error("прием RTP прерван", slog.String("error", err.Error()))

	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}
