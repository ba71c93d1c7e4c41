package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/processor"
)

func TestLoadExampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "voicecall.yaml"))
	require.NoError(t, err)

	assert.Equal(t, uint32(8000), cfg.Audio.SampleRate)
	assert.Equal(t, uint32(256), cfg.Audio.BufferSize)
	assert.Equal(t, processor.G711ULaw, cfg.Codec.G711Law())
	assert.Equal(t, "127.0.0.1:5006", cfg.RTP.RemoteAddress)
	assert.Equal(t, 100*time.Millisecond, cfg.RTP.ReadTimeout)
	assert.Equal(t, 46, cfg.RTP.DSCP)
	assert.Equal(t, 50, cfg.Jitter.Capacity)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
rtp:
  remote_address: "10.0.0.2:4000"
codec:
  law: alaw
`))
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, defaults.Audio, cfg.Audio)
	assert.Equal(t, defaults.Jitter, cfg.Jitter)
	assert.Equal(t, defaults.RTP.ListenAddress, cfg.RTP.ListenAddress)
	assert.Equal(t, processor.G711ALaw, cfg.Codec.G711Law())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.RTP.RemoteAddress = "127.0.0.1:5006"
		return cfg
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"формат не s16", func(c *Config) { c.Audio.Format = "f32" }},
		{"неизвестный формат", func(c *Config) { c.Audio.Format = "s12" }},
		{"недопустимый буфер", func(c *Config) { c.Audio.BufferSize = 160 }},
		{"нулевая частота", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"нет входных каналов", func(c *Config) { c.Audio.InputChannels = 0 }},
		{"отрицательное усиление", func(c *Config) { c.Audio.OutputGain = -1 }},
		{"неизвестный кодек", func(c *Config) { c.Codec.Law = "opus" }},
		{"нет удаленного адреса", func(c *Config) { c.RTP.RemoteAddress = "" }},
		{"некорректный адрес", func(c *Config) { c.RTP.ListenAddress = "нет-порта" }},
		{"нулевой таймаут", func(c *Config) { c.RTP.ReadTimeout = 0 }},
		{"dscp вне диапазона", func(c *Config) { c.RTP.DSCP = 64 }},
		{"слишком большой payload", func(c *Config) { c.RTP.MaxPayloadSize = 1489 }},
		{"стерео буфер не помещается в пакет", func(c *Config) { c.Audio.InputChannels = 2; c.Audio.BufferSize = 1024 }},
		{"буфер больше max_payload_size", func(c *Config) { c.RTP.MaxPayloadSize = 200 }},
		{"предзаполнение больше емкости", func(c *Config) { c.Jitter.Prefill = 100 }},
		{"метрики без адреса", func(c *Config) { c.Metrics.Address = "" }},
		{"неизвестный уровень логов", func(c *Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParsePayloadLimit(t *testing.T) {
	_, err := Parse([]byte(`
audio:
  input_channels: 2
  buffer_size: 1024
rtp:
  remote_address: "127.0.0.1:5006"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2048")

	cfg, err := Parse([]byte(`
audio:
  buffer_size: 1024
rtp:
  remote_address: "127.0.0.1:5006"
`))
	require.NoError(t, err, "моно 1024 кадра помещаются в пакет")
	assert.Equal(t, uint32(1024), cfg.Audio.BufferSize)

	_, err = Parse([]byte(`
audio:
  buffer_size: 512
rtp:
  remote_address: "127.0.0.1:5006"
  max_payload_size: 256
`))
	assert.Error(t, err, "явный max_payload_size ограничивает буфер")
}

func TestAudioConfiguration(t *testing.T) {
	cfg := Default()
	in := audio.DeviceInfo{ID: "mic"}
	out := audio.DeviceInfo{ID: "speaker"}

	engineCfg := cfg.Audio.Configuration(in, out)
	require.NoError(t, engineCfg.Validate())
	assert.Equal(t, "mic", engineCfg.InputDevice)
	assert.Equal(t, "speaker", engineCfg.OutputDevice)
	assert.Equal(t, audio.FormatS16, engineCfg.Format)
	assert.Equal(t, audio.BufferSize(256), engineCfg.BufferSize)

	cfg.Audio.InputDevice = "hw:1"
	assert.Equal(t, "hw:1", cfg.Audio.Configuration(in, out).InputDevice)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "нет.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
