package processor

import (
	"encoding/binary"
	"fmt"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/rtp"
	"github.com/zaf/g711"
)

// G711Law вариант кодека G.711
type G711Law int

const (
	G711ULaw G711Law = iota // μ-law, PCMU
	G711ALaw                // A-law, PCMA
)

func (l G711Law) String() string {
	if l == G711ALaw {
		return "alaw"
	}
	return "ulaw"
}

// PayloadType возвращает RTP payload тип варианта
func (l G711Law) PayloadType() rtp.PayloadType {
	if l == G711ALaw {
		return rtp.PayloadTypePCMA
	}
	return rtp.PayloadTypePCMU
}

// SilenceByte байт, который декодируется в тишину
func (l G711Law) SilenceByte() byte {
	if l == G711ALaw {
		return 0xD5
	}
	return 0xFF
}

// ParseG711Law разбирает "ulaw"/"pcmu" или "alaw"/"pcma"
func ParseG711Law(s string) (G711Law, error) {
	switch s {
	case "ulaw", "pcmu", "PCMU":
		return G711ULaw, nil
	case "alaw", "pcma", "PCMA":
		return G711ALaw, nil
	}
	return 0, fmt.Errorf("неизвестный вариант G.711: %q", s)
}

// G711 кодек G.711 для S16. Захват сжимается 2:1 (сэмпл в байт),
// воспроизведение расширяется 1:2. Преобразование выполняется на месте
// без выделения памяти.
type G711 struct {
	audio.BaseProcessor

	law    G711Law
	encode func(int16) uint8
	decode func(uint8) int16
}

// NewG711 создает кодек
func NewG711(name string, law G711Law) *G711 {
	c := &G711{
		BaseProcessor: audio.NewBaseProcessor(name),
		law:           law,
	}
	if law == G711ALaw {
		c.encode, c.decode = g711.EncodeAlawFrame, g711.DecodeAlawFrame
	} else {
		c.encode, c.decode = g711.EncodeUlawFrame, g711.DecodeUlawFrame
	}
	return c
}

// Law возвращает вариант кодека
func (c *G711) Law() G711Law { return c.law }

func (c *G711) SupportedFormats() []audio.SampleFormat {
	return []audio.SampleFormat{audio.FormatS16}
}

func (c *G711) Configure(cfg audio.Configuration) error {
	if cfg.Format != audio.FormatS16 {
		return fmt.Errorf("G.711 требует формат s16, получен %s", cfg.Format)
	}
	return nil
}

// ProcessInput кодирует n байт S16 в n/2 байт G.711
func (c *G711) ProcessInput(buf []byte, n int, _ *audio.StreamInfo) int {
	samples := n / 2
	// запись в i не догоняет чтение из 2i
	for i := 0; i < samples; i++ {
		buf[i] = c.encode(int16(binary.LittleEndian.Uint16(buf[2*i:])))
	}
	return samples
}

// ProcessOutput декодирует n байт G.711 в 2n байт S16, но не больше len(buf)
func (c *G711) ProcessOutput(buf []byte, n int, _ *audio.StreamInfo) int {
	samples := min(n, len(buf)/2)
	// с конца, чтобы не затереть еще не прочитанные байты
	for i := samples - 1; i >= 0; i-- {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(c.decode(buf[i])))
	}
	return samples * 2
}
