package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type listenerMetrics struct {
	received   prometheus.Counter
	invalid    prometheus.Counter
	sinkErrors prometheus.Counter
	readErrors *prometheus.CounterVec
}

func newListenerMetrics(reg prometheus.Registerer, stream string) *listenerMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"stream": stream}

	return &listenerMetrics{
		received: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_listener",
			Name:        "packets_received_total",
			Help:        "Принятые датаграммы, прошедшие проверку RTP",
			ConstLabels: labels,
		}),
		invalid: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_listener",
			Name:        "packets_invalid_total",
			Help:        "Датаграммы, не похожие на RTP",
			ConstLabels: labels,
		}),
		sinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_listener",
			Name:        "sink_errors_total",
			Help:        "Пакеты, отклоненные получателем",
			ConstLabels: labels,
		}),
		readErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_listener",
			Name:        "read_errors_total",
			Help:        "Ошибки чтения сокета по типам",
			ConstLabels: labels,
		}, []string{"type"}),
	}
}

type senderMetrics struct {
	sent   prometheus.Counter
	bytes  prometheus.Counter
	errors *prometheus.CounterVec
}

func newSenderMetrics(reg prometheus.Registerer, stream string) *senderMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"stream": stream}

	return &senderMetrics{
		sent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_sender",
			Name:        "packets_sent_total",
			Help:        "Отправленные RTP пакеты",
			ConstLabels: labels,
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_sender",
			Name:        "bytes_sent_total",
			Help:        "Отправленные байты",
			ConstLabels: labels,
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "voice",
			Subsystem:   "rtp_sender",
			Name:        "send_errors_total",
			Help:        "Ошибки отправки по типам",
			ConstLabels: labels,
		}, []string{"type"}),
	}
}
