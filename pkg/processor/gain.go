package processor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arzzra/voice_engine/pkg/audio"
)

// Gain линейное усиление для S16 и F32 с ограничением амплитуды
type Gain struct {
	audio.BaseProcessor

	input  float64
	output float64
	format audio.SampleFormat
}

// NewGain создает процессор усиления. input применяется к захвату,
// output к воспроизведению. 1.0 означает без изменений.
func NewGain(name string, input, output float64) *Gain {
	return &Gain{
		BaseProcessor: audio.NewBaseProcessor(name),
		input:         input,
		output:        output,
	}
}

func (g *Gain) SupportedFormats() []audio.SampleFormat {
	return []audio.SampleFormat{audio.FormatS16, audio.FormatF32}
}

func (g *Gain) Configure(cfg audio.Configuration) error {
	if g.input < 0 || g.output < 0 || math.IsNaN(g.input) || math.IsNaN(g.output) {
		return fmt.Errorf("недопустимый коэффициент усиления: вход %v, выход %v", g.input, g.output)
	}
	g.format = cfg.Format
	return nil
}

func (g *Gain) ProcessInput(buf []byte, n int, _ *audio.StreamInfo) int {
	applyGain(buf[:n], g.format, g.input)
	return n
}

func (g *Gain) ProcessOutput(buf []byte, n int, _ *audio.StreamInfo) int {
	applyGain(buf[:n], g.format, g.output)
	return n
}

func applyGain(buf []byte, format audio.SampleFormat, factor float64) {
	if factor == 1 {
		return
	}
	switch format {
	case audio.FormatS16:
		for i := 0; i+1 < len(buf); i += 2 {
			s := float64(int16(binary.LittleEndian.Uint16(buf[i:])))
			binary.LittleEndian.PutUint16(buf[i:], uint16(clampS16(s*factor)))
		}
	case audio.FormatF32:
		for i := 0; i+3 < len(buf); i += 4 {
			s := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
			v := math.Max(-1, math.Min(1, s*factor))
			binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(float32(v)))
		}
	}
}

func clampS16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
