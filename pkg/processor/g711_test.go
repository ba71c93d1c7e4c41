package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zaf/g711"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/rtp"
)

// quantizationBound граница ошибки логарифмического квантования G.711
func quantizationBound(sample int16) int {
	abs := int(sample)
	if abs < 0 {
		abs = -abs
	}
	return abs/16 + 64
}

func TestG711_RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000}

	for _, law := range []G711Law{G711ULaw, G711ALaw} {
		t.Run(law.String(), func(t *testing.T) {
			codec := NewG711("g711", law)
			require.NoError(t, codec.Configure(monoConfiguration()))

			buf := s16Bytes(samples...)
			n := codec.ProcessInput(buf, len(buf), nil)
			require.Equal(t, len(samples), n, "сжатие 2:1")

			n = codec.ProcessOutput(buf, n, nil)
			require.Equal(t, len(buf), n, "распаковка 1:2")

			for i, got := range s16Samples(buf[:n]) {
				diff := int(got) - int(samples[i])
				if diff < 0 {
					diff = -diff
				}
				assert.LessOrEqual(t, diff, quantizationBound(samples[i]), "сэмпл %d: %d -> %d", i, samples[i], got)
			}
		})
	}
}

func TestG711_MatchesReferenceEncoder(t *testing.T) {
	codec := NewG711("g711", G711ULaw)
	samples := sineS16(64, 12000, 16)

	buf := s16Bytes(samples...)
	n := codec.ProcessInput(buf, len(buf), nil)

	expected := g711.EncodeUlaw(s16Bytes(samples...))
	assert.Equal(t, expected, buf[:n])
}

func TestG711_OutputLimitedByBuffer(t *testing.T) {
	codec := NewG711("g711", G711ALaw)
	buf := make([]byte, 10)
	for i := range buf {
		buf[i] = G711ALaw.SilenceByte()
	}

	// 10 байт G.711 в буфере на 10 байт помещаются только 5 сэмплов
	n := codec.ProcessOutput(buf, 10, nil)
	assert.Equal(t, 10, n)
}

func TestG711_Silence(t *testing.T) {
	for _, law := range []G711Law{G711ULaw, G711ALaw} {
		codec := NewG711("g711", law)
		buf := []byte{law.SilenceByte(), law.SilenceByte(), 0, 0, 0, 0}
		n := codec.ProcessOutput(buf, 2, nil)
		require.Equal(t, 4, n)
		for _, s := range s16Samples(buf[:n]) {
			assert.InDelta(t, 0, s, 8, law.String())
		}
	}
}

func TestG711Law(t *testing.T) {
	assert.Equal(t, rtp.PayloadTypePCMU, G711ULaw.PayloadType())
	assert.Equal(t, rtp.PayloadTypePCMA, G711ALaw.PayloadType())

	law, err := ParseG711Law("pcma")
	require.NoError(t, err)
	assert.Equal(t, G711ALaw, law)
	law, err = ParseG711Law("ulaw")
	require.NoError(t, err)
	assert.Equal(t, G711ULaw, law)

	_, err = ParseG711Law("g729")
	assert.Error(t, err)
}

func TestG711_RequiresS16(t *testing.T) {
	cfg := monoConfiguration()
	cfg.Format = audio.FormatF32
	assert.Error(t, NewG711("g711", G711ULaw).Configure(cfg))
}
