package processor

import (
	"errors"
	"time"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/prometheus/client_golang/prometheus"
)

// Profiled оборачивает процессор и измеряет время обработки каждого вызова.
// Имя и возможности совпадают с обернутым процессором.
type Profiled struct {
	inner  audio.Processor
	input  prometheus.Observer
	output prometheus.Observer
}

// NewProfiled создает обертку. Гистограмма регистрируется в reg,
// метки processor и direction различают процессоры и направления.
func NewProfiled(inner audio.Processor, reg prometheus.Registerer) *Profiled {
	vec := profileHistogram(reg)
	return &Profiled{
		inner:  inner,
		input:  vec.WithLabelValues(inner.Name(), "input"),
		output: vec.WithLabelValues(inner.Name(), "output"),
	}
}

// Profile оборачивает все процессоры одной гистограммой
func Profile(reg prometheus.Registerer, processors ...audio.Processor) []audio.Processor {
	vec := profileHistogram(reg)
	out := make([]audio.Processor, len(processors))
	for i, p := range processors {
		out[i] = &Profiled{
			inner:  p,
			input:  vec.WithLabelValues(p.Name(), "input"),
			output: vec.WithLabelValues(p.Name(), "output"),
		}
	}
	return out
}

// profileHistogram возвращает общую гистограмму, уже
// зарегистрированная в reg переиспользуется
func profileHistogram(reg prometheus.Registerer) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "voice",
		Subsystem: "processor",
		Name:      "duration_seconds",
		Help:      "Время обработки буфера процессором",
		Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{"processor", "direction"})
	if reg == nil {
		return vec
	}
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

// Unwrap возвращает обернутый процессор
func (p *Profiled) Unwrap() audio.Processor { return p.inner }

func (p *Profiled) Name() string                             { return p.inner.Name() }
func (p *Profiled) SupportedFormats() []audio.SampleFormat   { return p.inner.SupportedFormats() }
func (p *Profiled) SupportedSampleRates() []uint32           { return p.inner.SupportedSampleRates() }
func (p *Profiled) PreferredBufferSizes() []audio.BufferSize { return p.inner.PreferredBufferSizes() }
func (p *Profiled) Configure(cfg audio.Configuration) error  { return p.inner.Configure(cfg) }
func (p *Profiled) CleanUp() error                           { return p.inner.CleanUp() }

func (p *Profiled) ProcessInput(buf []byte, n int, info *audio.StreamInfo) int {
	started := time.Now()
	n = p.inner.ProcessInput(buf, n, info)
	p.input.Observe(time.Since(started).Seconds())
	return n
}

func (p *Profiled) ProcessOutput(buf []byte, n int, info *audio.StreamInfo) int {
	started := time.Now()
	n = p.inner.ProcessOutput(buf, n, info)
	p.output.Observe(time.Since(started).Seconds())
	return n
}
