package processor

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"

	"github.com/arzzra/voice_engine/pkg/audio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func s16Bytes(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func s16Samples(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return out
}

func f32Bytes(samples ...float32) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return buf
}

func f32Samples(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out
}

// monoConfiguration телефонный поток: 8 кГц, моно, s16
func monoConfiguration() audio.Configuration {
	return audio.Configuration{
		InputDevice:    "in",
		OutputDevice:   "out",
		InputChannels:  1,
		OutputChannels: 1,
		SampleRate:     8000,
		BufferSize:     128,
		Format:         audio.FormatS16,
	}
}

// sineS16 синус с амплитудой amp и периодом period сэмплов
func sineS16(count int, amp float64, period int) []int16 {
	out := make([]int16, count)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*float64(i)/float64(period)))
	}
	return out
}
