// Package virtual реализует программный аудио драйвер без оборудования.
// Периоды буфера отсчитываются таймером или вызовами Step, захват и
// воспроизведение подключаются функциями Capture и Playback.
package virtual

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arzzra/voice_engine/pkg/audio"
)

// Name имя драйвера в фабрике
const Name = "virtual"

// DeviceID идентификатор устройства по умолчанию
const DeviceID = "virtual:0"

// ErrNotRunning возвращается из Step для остановленного потока
var ErrNotRunning = errors.New("поток не запущен")

// Config параметры драйвера
type Config struct {
	// Devices список устройств, по умолчанию одно дуплексное
	Devices []audio.DeviceInfo
	// Manual отключает таймер: периоды выполняются только через Step
	Manual bool
	// Capture заполняет входной буфер периода, nil дает тишину
	Capture func(input []byte)
	// Playback получает выходной буфер после обработки
	Playback func(output []byte)
	Logger   *slog.Logger
}

// DefaultDevice дуплексное устройство по умолчанию
func DefaultDevice() audio.DeviceInfo {
	return audio.DeviceInfo{
		ID:                  DeviceID,
		Name:                "Virtual Audio Device",
		MaxInputChannels:    2,
		MaxOutputChannels:   2,
		SampleRates:         []uint32{8000, 16000, 44100, 48000},
		PreferredSampleRate: 48000,
		IsDefaultInput:      true,
		IsDefaultOutput:     true,
	}
}

// Driver программный драйвер
type Driver struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	params  audio.StreamParams
	cb      audio.Callback
	open    bool
	running bool
	stop    chan struct{}
	done    chan struct{}

	// streamMu сериализует периоды таймера и Step
	streamMu  sync.Mutex
	// active повторяет running без mu, проверяется под streamMu
	active    atomic.Bool
	input     []byte
	output    []byte
	processed uint64
}

// New создает драйвер
func New(config Config) *Driver {
	if len(config.Devices) == 0 {
		config.Devices = []audio.DeviceInfo{DefaultDevice()}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		config: config,
		logger: logger.With(slog.String("driver", Name)),
	}
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Devices() ([]audio.DeviceInfo, error) {
	return append([]audio.DeviceInfo(nil), d.config.Devices...), nil
}

func (d *Driver) DefaultDevices() (audio.DeviceInfo, audio.DeviceInfo, error) {
	in, out := d.config.Devices[0], d.config.Devices[0]
	for _, dev := range d.config.Devices {
		if dev.IsDefaultInput {
			in = dev
		}
		if dev.IsDefaultOutput {
			out = dev
		}
	}
	return in, out, nil
}

func (d *Driver) Open(params audio.StreamParams, cb audio.Callback) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open {
		return 0, errors.New("поток уже открыт")
	}
	if cb == nil {
		return 0, errors.New("callback обязателен")
	}
	if params.Format.BytesPerSample() == 0 || params.SampleRate == 0 || params.BufferFrames == 0 {
		return 0, fmt.Errorf("некорректные параметры потока: %+v", params)
	}
	if params.Mode.HasInput() && params.InputChannels == 0 {
		return 0, errors.New("режим записи без входных каналов")
	}
	if params.Mode.HasOutput() && params.OutputChannels == 0 {
		return 0, errors.New("режим воспроизведения без выходных каналов")
	}

	sample := params.Format.BytesPerSample()
	d.streamMu.Lock()
	d.input = make([]byte, int(params.BufferFrames)*int(params.InputChannels)*sample)
	d.output = make([]byte, int(params.BufferFrames)*int(params.OutputChannels)*sample)
	d.processed = 0
	d.streamMu.Unlock()

	d.params = params
	d.cb = cb
	d.open = true

	d.logger.Debug("поток открыт",
		slog.String("mode", params.Mode.String()),
		slog.Uint64("rate", uint64(params.SampleRate)),
		slog.Uint64("frames", uint64(params.BufferFrames)))
	return params.BufferFrames, nil
}

// Period длительность одного периода буфера
func (d *Driver) Period() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.period()
}

func (d *Driver) period() time.Duration {
	if d.params.SampleRate == 0 {
		return 0
	}
	return time.Duration(d.params.BufferFrames) * time.Second / time.Duration(d.params.SampleRate)
}

func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return errors.New("поток не открыт")
	}
	if d.running {
		return nil
	}
	d.running = true
	d.active.Store(true)

	if !d.config.Manual {
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.loop(d.period(), d.stop, d.done)
	}
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.active.Store(false)
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	// дожидаемся периода, начатого через Step до остановки
	d.streamMu.Lock()
	d.streamMu.Unlock()
	return nil
}

func (d *Driver) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.cb = nil
	return nil
}

func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Step выполняет один период буфера синхронно
func (d *Driver) Step() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrNotRunning
	}
	cb, params := d.cb, d.params
	d.mu.Unlock()

	if !d.runPeriod(cb, params) {
		return ErrNotRunning
	}
	return nil
}

func (d *Driver) loop(period time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	d.mu.Lock()
	cb, params := d.cb, d.params
	d.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.runPeriod(cb, params)
		}
	}
}

// runPeriod выполняет период, если поток не остановлен к моменту захвата streamMu
func (d *Driver) runPeriod(cb audio.Callback, params audio.StreamParams) bool {
	d.streamMu.Lock()
	defer d.streamMu.Unlock()

	if !d.active.Load() {
		return false
	}

	if params.Mode.HasInput() {
		if d.config.Capture != nil {
			d.config.Capture(d.input)
		} else {
			clear(d.input)
		}
	}
	clear(d.output)

	streamTime := time.Duration(d.processed) * time.Second / time.Duration(params.SampleRate)
	cb(d.output, d.input, params.BufferFrames, streamTime, 0)
	d.processed += uint64(params.BufferFrames)

	if params.Mode.HasOutput() && d.config.Playback != nil {
		d.config.Playback(d.output)
	}
	return true
}
