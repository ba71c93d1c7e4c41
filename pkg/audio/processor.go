package audio

import "time"

// StreamInfo параметры текущего вызова callback'а
type StreamInfo struct {
	// Frames количество кадров в вызове
	Frames uint32
	// StreamTime время потока с момента старта
	StreamTime time.Duration
	// MaxBufferSize емкость обрабатываемого буфера в байтах.
	// Результат процессора не может ее превышать.
	MaxBufferSize int
	// Status флаги переполнения/опустошения от драйвера
	Status StreamStatus
}

// Processor именованная стадия обработки аудио.
//
// Процессор преобразует буфер на месте: на вход получает buf[:n] и
// возвращает новое количество валидных байт. Сжатие уменьшает его,
// распаковка увеличивает, но не больше len(buf).
//
// ProcessInput и ProcessOutput вызываются из аудио callback'а: они не
// должны блокироваться, выделять память или паниковать.
type Processor interface {
	// Name уникальное имя процессора в цепочке
	Name() string

	// SupportedFormats форматы сэмплов, nil означает любой
	SupportedFormats() []SampleFormat
	// SupportedSampleRates частоты дискретизации, nil означает любую
	SupportedSampleRates() []uint32
	// PreferredBufferSizes размеры буфера по убыванию приоритета.
	// BufferSizeAny допустим последним элементом, nil означает любой.
	PreferredBufferSizes() []BufferSize

	// Configure вызывается один раз перед стартом потока
	Configure(cfg Configuration) error
	// CleanUp освобождает ресурсы, выделенные в Configure
	CleanUp() error

	// ProcessInput обрабатывает захваченные данные (прямой порядок цепочки)
	ProcessInput(buf []byte, n int, info *StreamInfo) int
	// ProcessOutput обрабатывает данные для воспроизведения (обратный порядок)
	ProcessOutput(buf []byte, n int, info *StreamInfo) int
}

// BaseProcessor реализация по умолчанию для встраивания в процессоры:
// поддерживает любые параметры, Configure и CleanUp ничего не делают,
// данные передаются без изменений.
type BaseProcessor struct {
	name string
}

// NewBaseProcessor создает BaseProcessor с заданным именем
func NewBaseProcessor(name string) BaseProcessor {
	return BaseProcessor{name: name}
}

func (b BaseProcessor) Name() string                       { return b.name }
func (b BaseProcessor) SupportedFormats() []SampleFormat   { return nil }
func (b BaseProcessor) SupportedSampleRates() []uint32     { return nil }
func (b BaseProcessor) PreferredBufferSizes() []BufferSize { return nil }
func (b BaseProcessor) Configure(Configuration) error      { return nil }
func (b BaseProcessor) CleanUp() error                     { return nil }

func (b BaseProcessor) ProcessInput(_ []byte, n int, _ *StreamInfo) int  { return n }
func (b BaseProcessor) ProcessOutput(_ []byte, n int, _ *StreamInfo) int { return n }
