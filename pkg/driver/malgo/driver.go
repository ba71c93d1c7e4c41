//go:build cgo

// Package malgo аудио драйвер поверх miniaudio (github.com/gen2brain/malgo).
// Требует cgo.
package malgo

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/arzzra/voice_engine/pkg/audio"
)

// Name имя драйвера в фабрике
const Name = "malgo"

// ErrUnsupportedFormat формат сэмплов не поддерживается miniaudio
var ErrUnsupportedFormat = errors.New("формат сэмплов не поддерживается miniaudio")

// Каналы устройства, которые драйвер сообщает движку. miniaudio
// конвертирует каналы сам, поэтому больше стерео не запрашивается.
const deviceChannels = 2

// Config параметры драйвера
type Config struct {
	// Backends список backend'ов miniaudio, nil означает выбор по умолчанию
	Backends []malgo.Backend
	Logger   *slog.Logger
}

// Driver драйвер miniaudio. Контекст создается в New и освобождается
// в Release, поток открывается в Open и закрывается в Close.
type Driver struct {
	logger *slog.Logger
	ctx    *malgo.AllocatedContext

	mu      sync.Mutex
	device  *malgo.Device
	ids     map[string]malgo.DeviceID
	running bool

	// для callback'а
	cb        audio.Callback
	rate      uint32
	period    uint32
	inFrame   int
	outFrame  int
	processed atomic.Uint64

	// периоды, размер которых отличается от согласованного
	mismatched atomic.Uint64
}

// New инициализирует контекст miniaudio
func New(config Config) (*Driver, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("driver", Name))

	ctx, err := malgo.InitContext(config.Backends, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", slog.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации контекста miniaudio: %w", err)
	}

	return &Driver{
		logger: logger,
		ctx:    ctx,
		ids:    make(map[string]malgo.DeviceID),
	}, nil
}

func (d *Driver) Name() string { return Name }

// Devices перечисляет устройства захвата и воспроизведения. Устройство,
// которое умеет и то и другое, miniaudio сообщает дважды.
func (d *Driver) Devices() ([]audio.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devicesLocked()
}

func (d *Driver) devicesLocked() ([]audio.DeviceInfo, error) {
	var out []audio.DeviceInfo
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		infos, err := d.ctx.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("ошибка перечисления устройств: %w", err)
		}
		for _, info := range infos {
			id := info.ID.String()
			d.ids[id] = info.ID

			dev := audio.DeviceInfo{
				ID:                  id,
				Name:                info.Name(),
				SampleRates:         []uint32{8000, 16000, 44100, 48000},
				PreferredSampleRate: 48000,
			}
			if kind == malgo.Capture {
				dev.MaxInputChannels = deviceChannels
				dev.IsDefaultInput = info.IsDefault != 0
			} else {
				dev.MaxOutputChannels = deviceChannels
				dev.IsDefaultOutput = info.IsDefault != 0
			}
			out = append(out, dev)
		}
	}
	return out, nil
}

// DefaultDevices возвращает устройства по умолчанию. Пустой ID означает
// устройство по умолчанию системы.
func (d *Driver) DefaultDevices() (audio.DeviceInfo, audio.DeviceInfo, error) {
	in := audio.DeviceInfo{MaxInputChannels: deviceChannels, PreferredSampleRate: 48000, IsDefaultInput: true}
	out := audio.DeviceInfo{MaxOutputChannels: deviceChannels, PreferredSampleRate: 48000, IsDefaultOutput: true}

	devices, err := d.Devices()
	if err != nil {
		return in, out, err
	}
	for _, dev := range devices {
		switch {
		case dev.IsDefaultInput:
			in = dev
		case dev.IsDefaultOutput:
			out = dev
		}
	}
	return in, out, nil
}

func formatOf(f audio.SampleFormat) (malgo.FormatType, error) {
	switch f {
	case audio.FormatS16:
		return malgo.FormatS16, nil
	case audio.FormatS24:
		return malgo.FormatS24, nil
	case audio.FormatS32:
		return malgo.FormatS32, nil
	case audio.FormatF32:
		return malgo.FormatF32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

func deviceTypeOf(mode audio.Mode) (malgo.DeviceType, error) {
	switch mode {
	case audio.ModeRecording:
		return malgo.Capture, nil
	case audio.ModePlayback:
		return malgo.Playback, nil
	case audio.ModeDuplex:
		return malgo.Duplex, nil
	}
	return 0, fmt.Errorf("неподдерживаемый режим потока: %s", mode)
}

func (d *Driver) Open(params audio.StreamParams, cb audio.Callback) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return 0, errors.New("поток уже открыт")
	}
	format, err := formatOf(params.Format)
	if err != nil {
		return 0, err
	}
	kind, err := deviceTypeOf(params.Mode)
	if err != nil {
		return 0, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(kind)
	deviceConfig.SampleRate = params.SampleRate
	deviceConfig.PeriodSizeInFrames = params.BufferFrames
	deviceConfig.Alsa.NoMMap = 1
	if params.Mode.HasInput() {
		deviceConfig.Capture.Format = format
		deviceConfig.Capture.Channels = uint32(params.InputChannels)
		if id, ok := d.ids[params.InputDevice]; ok {
			deviceConfig.Capture.DeviceID = id.Pointer()
		}
	}
	if params.Mode.HasOutput() {
		deviceConfig.Playback.Format = format
		deviceConfig.Playback.Channels = uint32(params.OutputChannels)
		if id, ok := d.ids[params.OutputDevice]; ok {
			deviceConfig.Playback.DeviceID = id.Pointer()
		}
	}

	sample := params.Format.BytesPerSample()
	d.cb = cb
	d.rate = params.SampleRate
	d.period = params.BufferFrames
	d.inFrame = int(params.InputChannels) * sample
	d.outFrame = int(params.OutputChannels) * sample
	d.processed.Store(0)
	d.mismatched.Store(0)

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onData,
		Stop: d.onStop,
	})
	if err != nil {
		d.cb = nil
		return 0, fmt.Errorf("ошибка открытия устройства: %w", err)
	}
	d.device = device

	d.logger.Info("поток открыт",
		slog.String("mode", params.Mode.String()),
		slog.Uint64("rate", uint64(params.SampleRate)),
		slog.Uint64("frames", uint64(params.BufferFrames)))
	return params.BufferFrames, nil
}

// onData вызывается потоком miniaudio. Размер периода может отличаться
// от запрошенного: больший период делится на части не длиннее
// согласованного, чтобы движок не обрезал захват.
func (d *Driver) onData(output, input []byte, frames uint32) {
	if frames != d.period && d.mismatched.Add(1) == 1 {
		d.logger.Warn("размер периода отличается от согласованного",
			slog.Uint64("frames", uint64(frames)),
			slog.Uint64("negotiated", uint64(d.period)))
	}
	splitPeriod(output, input, frames, d.period, d.outFrame, d.inFrame, func(out, in []byte, n uint32) {
		streamTime := time.Duration(d.processed.Load()) * time.Second / time.Duration(d.rate)
		d.cb(out, in, n, streamTime, 0)
		d.processed.Add(uint64(n))
	})
}

// splitPeriod вызывает fn для последовательных частей периода длиной
// не более period кадров. Пустой буфер направления передается пустым.
func splitPeriod(output, input []byte, frames, period uint32, outFrame, inFrame int, fn func(out, in []byte, frames uint32)) {
	if period == 0 || frames <= period {
		fn(output, input, frames)
		return
	}
	for offset := uint32(0); offset < frames; offset += period {
		n := min(period, frames-offset)
		fn(framesOf(output, offset, n, outFrame), framesOf(input, offset, n, inFrame), n)
	}
}

func framesOf(buf []byte, offset, n uint32, frameBytes int) []byte {
	if len(buf) == 0 || frameBytes == 0 {
		return nil
	}
	from := min(int(offset)*frameBytes, len(buf))
	to := min(from+int(n)*frameBytes, len(buf))
	return buf[from:to]
}

// MismatchedPeriods количество периодов с размером, отличным от согласованного
func (d *Driver) MismatchedPeriods() uint64 {
	return d.mismatched.Load()
}

func (d *Driver) onStop() {
	d.logger.Debug("устройство остановлено")
}

func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return errors.New("поток не открыт")
	}
	if d.running {
		return nil
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("ошибка запуска устройства: %w", err)
	}
	d.running = true
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *Driver) stopLocked() error {
	if d.device == nil || !d.running {
		return nil
	}
	d.running = false
	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("ошибка остановки устройства: %w", err)
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}
	err := d.stopLocked()
	d.device.Uninit()
	d.device = nil
	d.cb = nil
	return err
}

func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device != nil
}

func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Release закрывает поток и освобождает контекст miniaudio
func (d *Driver) Release() error {
	err := d.Close()
	if uninitErr := d.ctx.Uninit(); uninitErr != nil {
		err = errors.Join(err, uninitErr)
	}
	d.ctx.Free()
	return err
}
