package audio

import "time"

// Mode режим потока
type Mode int

const (
	ModeNone Mode = iota
	ModeRecording
	ModePlayback
	ModeDuplex
)

func (m Mode) String() string {
	switch m {
	case ModeRecording:
		return "recording"
	case ModePlayback:
		return "playback"
	case ModeDuplex:
		return "duplex"
	default:
		return "none"
	}
}

// HasInput сообщает что режим использует захват
func (m Mode) HasInput() bool { return m == ModeRecording || m == ModeDuplex }

// HasOutput сообщает что режим использует воспроизведение
func (m Mode) HasOutput() bool { return m == ModePlayback || m == ModeDuplex }

// StreamStatus флаги состояния потока, которые драйвер передает в callback
type StreamStatus uint8

const (
	StatusInputOverflow StreamStatus = 1 << iota
	StatusOutputUnderflow
)

// DeviceInfo описание аудио устройства
type DeviceInfo struct {
	ID                  string
	Name                string
	MaxInputChannels    uint16
	MaxOutputChannels   uint16
	SampleRates         []uint32
	PreferredSampleRate uint32
	IsDefaultInput      bool
	IsDefaultOutput     bool
}

// StreamParams параметры открытия потока
type StreamParams struct {
	Mode           Mode
	InputDevice    string
	OutputDevice   string
	InputChannels  uint16
	OutputChannels uint16
	SampleRate     uint32
	Format         SampleFormat
	BufferFrames   uint32
}

// Callback вызывается драйвером на каждый период буфера.
// output пуст в режиме записи, input пуст в режиме воспроизведения.
type Callback func(output, input []byte, frames uint32, streamTime time.Duration, status StreamStatus)

// Driver привязка к аудио подсистеме.
// Движок вызывает методы Driver только из управляющих операций,
// callback драйвер вызывает из своего потока реального времени.
type Driver interface {
	Name() string
	Devices() ([]DeviceInfo, error)
	// DefaultDevices возвращает устройства записи и воспроизведения по умолчанию
	DefaultDevices() (input DeviceInfo, output DeviceInfo, err error)

	// Open открывает поток и возвращает фактический размер буфера в кадрах
	Open(params StreamParams, cb Callback) (uint32, error)
	Start() error
	Stop() error
	Close() error

	IsOpen() bool
	IsRunning() bool
}
