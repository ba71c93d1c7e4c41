package audio

import (
	"fmt"
	"slices"
	"strings"
)

// SampleFormat формат одного сэмпла в буфере
type SampleFormat uint8

const (
	FormatUnknown SampleFormat = iota
	FormatS8                   // знаковое 8-битное целое
	FormatS16                  // знаковое 16-битное целое
	FormatS24                  // знаковое 24-битное целое (упакованное, 3 байта)
	FormatS32                  // знаковое 32-битное целое
	FormatF32                  // float32 в диапазоне [-1, 1]
	FormatF64                  // float64 в диапазоне [-1, 1]
)

// AllFormats все поддерживаемые движком форматы
var AllFormats = []SampleFormat{FormatS8, FormatS16, FormatS24, FormatS32, FormatF32, FormatF64}

// BytesPerSample возвращает размер сэмпла в байтах, 0 для неизвестного формата
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	case FormatF64:
		return 8
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case FormatS8:
		return "s8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	case FormatF64:
		return "f64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseSampleFormat разбирает имя формата ("s16", "F32" и т.п.)
func ParseSampleFormat(s string) (SampleFormat, error) {
	for _, f := range AllFormats {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("неизвестный формат сэмплов: %q", s)
}

// BufferSize размер буфера в кадрах
type BufferSize uint32

// BufferSizeAny означает "любой размер" в списке предпочтений процессора.
// Допустим только последним, с наименьшим приоритетом.
const BufferSizeAny BufferSize = 0

// ValidBufferSizes допустимые размеры буфера
var ValidBufferSizes = []BufferSize{64, 128, 256, 512, 1024, 2048, 4096}

// IsValid проверяет что размер входит в ValidBufferSizes
func (b BufferSize) IsValid() bool {
	return slices.Contains(ValidBufferSizes, b)
}

// Значения конфигурации по умолчанию
const (
	DefaultFormat     = FormatS16
	DefaultChannels   = 2
	DefaultBufferSize = BufferSize(256)
)

// PreferredSampleRates частоты по умолчанию в порядке убывания приоритета
var PreferredSampleRates = []uint32{48000, 44100}

// Configuration конфигурация аудио потока.
// Структура сравнима оператором ==, нулевое значение означает "не задана".
type Configuration struct {
	InputDevice    string       // идентификатор устройства записи (зависит от драйвера)
	OutputDevice   string       // идентификатор устройства воспроизведения
	InputChannels  uint16
	OutputChannels uint16
	SampleRate     uint32
	BufferSize     BufferSize
	Format         SampleFormat
}

// IsZero сообщает что конфигурация не задана
func (c Configuration) IsZero() bool {
	return c == Configuration{}
}

// Validate проверяет корректность конфигурации
func (c Configuration) Validate() error {
	if c.IsZero() {
		return fmt.Errorf("конфигурация не задана")
	}
	if c.Format.BytesPerSample() == 0 {
		return fmt.Errorf("неподдерживаемый формат сэмплов: %s", c.Format)
	}
	if !c.BufferSize.IsValid() {
		return fmt.Errorf("недопустимый размер буфера: %d (допустимо %v)", c.BufferSize, ValidBufferSizes)
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("частота дискретизации не задана")
	}
	if c.InputChannels == 0 && c.OutputChannels == 0 {
		return fmt.Errorf("не задано ни одного канала")
	}
	return nil
}

// InputFrameBytes размер одного входного кадра в байтах
func (c Configuration) InputFrameBytes() int {
	return int(c.InputChannels) * c.Format.BytesPerSample()
}

// OutputFrameBytes размер одного выходного кадра в байтах
func (c Configuration) OutputFrameBytes() int {
	return int(c.OutputChannels) * c.Format.BytesPerSample()
}

// InputBufferBytes размер входного буфера одного callback'а
func (c Configuration) InputBufferBytes() int {
	return int(c.BufferSize) * c.InputFrameBytes()
}

// OutputBufferBytes размер выходного буфера одного callback'а
func (c Configuration) OutputBufferBytes() int {
	return int(c.BufferSize) * c.OutputFrameBytes()
}

func (c Configuration) String() string {
	return fmt.Sprintf("in=%q/%dch out=%q/%dch %dHz %s buffer=%d",
		c.InputDevice, c.InputChannels, c.OutputDevice, c.OutputChannels,
		c.SampleRate, c.Format, c.BufferSize)
}
