package audio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineMetrics метрики аудио движка.
// Счетчики в callback'е обновляются без блокировок: prometheus
// Counter/Histogram используют атомарные операции.
type engineMetrics struct {
	callbacks        prometheus.Counter
	callbackDuration prometheus.Histogram
	processorPanics  prometheus.Counter
	inputOverflows   prometheus.Counter
	outputUnderflows prometheus.Counter
	transitions      *prometheus.CounterVec
}

func newEngineMetrics(reg prometheus.Registerer, name string) *engineMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"engine": name}

	return &engineMetrics{
		callbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "audio",
			Name:        "callbacks_total",
			Help:        "Количество вызовов аудио callback'а",
			ConstLabels: labels,
		}),
		callbackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "voice",
			Subsystem:   "audio",
			Name:        "callback_duration_seconds",
			Help:        "Время обработки одного callback'а цепочкой",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 2, 14),
		}),
		processorPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "audio",
			Name:        "processor_panics_total",
			Help:        "Паники процессоров, перехваченные в callback'е",
			ConstLabels: labels,
		}),
		inputOverflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "audio",
			Name:        "input_overflows_total",
			Help:        "Переполнения входного буфера драйвера",
			ConstLabels: labels,
		}),
		outputUnderflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "audio",
			Name:        "output_underflows_total",
			Help:        "Опустошения выходного буфера драйвера",
			ConstLabels: labels,
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "audio",
			Name:        "state_transitions_total",
			Help:        "Переходы состояний движка",
			ConstLabels: labels,
		}, []string{"from", "to"}),
	}
}
