package processor

import (
	"sync/atomic"

	"github.com/arzzra/voice_engine/pkg/audio"
)

// Passthrough процессор без преобразования данных. Считает вызовы и байты,
// удобен как заглушка в цепочке и в тестах.
type Passthrough struct {
	audio.BaseProcessor

	inputBytes  atomic.Uint64
	outputBytes atomic.Uint64
}

// NewPassthrough создает прозрачный процессор
func NewPassthrough(name string) *Passthrough {
	return &Passthrough{BaseProcessor: audio.NewBaseProcessor(name)}
}

func (p *Passthrough) ProcessInput(_ []byte, n int, _ *audio.StreamInfo) int {
	p.inputBytes.Add(uint64(n))
	return n
}

func (p *Passthrough) ProcessOutput(_ []byte, n int, _ *audio.StreamInfo) int {
	p.outputBytes.Add(uint64(n))
	return n
}

// InputBytes сколько байт прошло через захват
func (p *Passthrough) InputBytes() uint64 { return p.inputBytes.Load() }

// OutputBytes сколько байт прошло через воспроизведение
func (p *Passthrough) OutputBytes() uint64 { return p.outputBytes.Load() }
