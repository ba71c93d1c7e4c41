// Package config загружает конфигурацию голосового звонка из YAML
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/jitter"
	"github.com/arzzra/voice_engine/pkg/logging"
	"github.com/arzzra/voice_engine/pkg/processor"
	"github.com/arzzra/voice_engine/pkg/rtp"
)

// Config полная конфигурация процесса
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Codec   CodecConfig   `yaml:"codec"`
	RTP     RTPConfig     `yaml:"rtp"`
	Jitter  JitterConfig  `yaml:"jitter"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// AudioConfig параметры аудио движка
type AudioConfig struct {
	// Driver имя драйвера, пустое означает драйвер по умолчанию
	Driver string `yaml:"driver"`
	// InputDevice и OutputDevice пустые означают устройства по умолчанию
	InputDevice    string  `yaml:"input_device"`
	OutputDevice   string  `yaml:"output_device"`
	InputChannels  uint16  `yaml:"input_channels"`
	OutputChannels uint16  `yaml:"output_channels"`
	SampleRate     uint32  `yaml:"sample_rate"`
	BufferSize     uint32  `yaml:"buffer_size"` // кадров
	Format         string  `yaml:"format"`
	InputGain      float64 `yaml:"input_gain"`
	OutputGain     float64 `yaml:"output_gain"`
	// Profile включает гистограмму времени обработки процессоров
	Profile bool `yaml:"profile"`
}

// CodecConfig параметры кодека
type CodecConfig struct {
	// Law ulaw или alaw
	Law string `yaml:"law"`
}

// RTPConfig параметры сети
type RTPConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	RemoteAddress string        `yaml:"remote_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	// DSCP метка QoS исходящих пакетов, 0 отключает
	DSCP int `yaml:"dscp"`
	// MaxPayloadSize 0 означает размер буфера потока
	MaxPayloadSize int `yaml:"max_payload_size"`
}

// JitterConfig параметры jitter буфера
type JitterConfig struct {
	Capacity int `yaml:"capacity"`
	Prefill  int `yaml:"prefill"`
}

// MetricsConfig параметры HTTP сервера метрик
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig параметры логирования
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default возвращает конфигурацию по умолчанию: телефонный поток
// 8 кГц моно, G.711 μ-law, RTP на порту 5004
func Default() Config {
	jitterDefaults := jitter.DefaultConfig()
	return Config{
		Audio: AudioConfig{
			InputChannels:  1,
			OutputChannels: 1,
			SampleRate:     8000,
			BufferSize:     uint32(audio.DefaultBufferSize),
			Format:         audio.FormatS16.String(),
			InputGain:      1,
			OutputGain:     1,
		},
		Codec: CodecConfig{Law: processor.G711ULaw.String()},
		RTP: RTPConfig{
			ListenAddress: "0.0.0.0:5004",
			ReadTimeout:   100 * time.Millisecond,
			DSCP:          46,
		},
		Jitter: JitterConfig{
			Capacity: jitterDefaults.Capacity,
			Prefill:  jitterDefaults.Prefill,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load читает файл поверх значений по умолчанию и проверяет результат
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}
	return &cfg, nil
}

// Validate проверяет все секции
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	if err := c.RTP.Validate(); err != nil {
		return fmt.Errorf("rtp: %w", err)
	}
	if err := c.validatePayload(); err != nil {
		return fmt.Errorf("rtp: %w", err)
	}
	if err := c.Jitter.Config().Validate(); err != nil {
		return fmt.Errorf("jitter: %w", err)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics: адрес не задан")
	}
	if err := c.Logging.Config().Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// validatePayload проверяет, что закодированный буфер захвата помещается
// в один RTP пакет. G.711 дает один байт на отсчет.
func (c *Config) validatePayload() error {
	limit := rtp.MaxPacketSize - rtp.HeaderSize
	if c.RTP.MaxPayloadSize > 0 {
		limit = c.RTP.MaxPayloadSize
	}
	payload := int(c.Audio.BufferSize) * int(c.Audio.InputChannels)
	if payload > limit {
		return fmt.Errorf("payload %d байт (buffer_size %d x input_channels %d) больше максимума %d",
			payload, c.Audio.BufferSize, c.Audio.InputChannels, limit)
	}
	return nil
}

// Validate проверяет параметры потока. G.711 кодирует только s16.
func (a *AudioConfig) Validate() error {
	format, err := audio.ParseSampleFormat(a.Format)
	if err != nil {
		return err
	}
	if format != audio.FormatS16 {
		return fmt.Errorf("кодек G.711 требует формат s16, задан %s", format)
	}
	if !audio.BufferSize(a.BufferSize).IsValid() {
		return fmt.Errorf("buffer_size %d не входит в %v", a.BufferSize, audio.ValidBufferSizes)
	}
	if a.SampleRate == 0 {
		return fmt.Errorf("sample_rate не задана")
	}
	if a.InputChannels == 0 || a.OutputChannels == 0 {
		return fmt.Errorf("звонок требует входные и выходные каналы")
	}
	if a.InputGain < 0 || a.OutputGain < 0 {
		return fmt.Errorf("усиление не может быть отрицательным")
	}
	return nil
}

// Configuration преобразует секцию в конфигурацию движка. Пустые
// устройства заменяются на in и out.
func (a *AudioConfig) Configuration(in, out audio.DeviceInfo) audio.Configuration {
	format, _ := audio.ParseSampleFormat(a.Format)
	cfg := audio.Configuration{
		InputDevice:    a.InputDevice,
		OutputDevice:   a.OutputDevice,
		InputChannels:  a.InputChannels,
		OutputChannels: a.OutputChannels,
		SampleRate:     a.SampleRate,
		BufferSize:     audio.BufferSize(a.BufferSize),
		Format:         format,
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = in.ID
	}
	if cfg.OutputDevice == "" {
		cfg.OutputDevice = out.ID
	}
	return cfg
}

func (c *CodecConfig) Validate() error {
	_, err := processor.ParseG711Law(c.Law)
	return err
}

// G711Law возвращает вариант кодека
func (c *CodecConfig) G711Law() processor.G711Law {
	law, _ := processor.ParseG711Law(c.Law)
	return law
}

func (r *RTPConfig) Validate() error {
	if _, err := net.ResolveUDPAddr("udp", r.ListenAddress); err != nil {
		return fmt.Errorf("listen_address: %w", err)
	}
	if r.RemoteAddress == "" {
		return fmt.Errorf("remote_address не задан")
	}
	if _, err := net.ResolveUDPAddr("udp", r.RemoteAddress); err != nil {
		return fmt.Errorf("remote_address: %w", err)
	}
	if r.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout должен быть положительным")
	}
	if r.DSCP < 0 || r.DSCP > 63 {
		return fmt.Errorf("dscp вне диапазона [0, 63]: %d", r.DSCP)
	}
	if r.MaxPayloadSize < 0 || r.MaxPayloadSize > rtp.MaxPacketSize-rtp.HeaderSize {
		return fmt.Errorf("max_payload_size вне диапазона [0, %d]: %d", rtp.MaxPacketSize-rtp.HeaderSize, r.MaxPayloadSize)
	}
	return nil
}

// Config параметры jitter буфера
func (j *JitterConfig) Config() jitter.Config {
	return jitter.Config{Capacity: j.Capacity, Prefill: j.Prefill}
}

// Config параметры логгера
func (l *LoggingConfig) Config() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}
