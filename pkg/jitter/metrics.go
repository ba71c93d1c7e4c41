package jitter

import "github.com/prometheus/client_golang/prometheus"

// Collector экспортирует статистику буфера в Prometheus.
// Значения снимаются при каждом сборе, буфер ничего не обновляет сам.
type Collector struct {
	buffer *Buffer

	size      *prometheus.Desc
	received  *prometheus.Desc
	played    *prometheus.Desc
	dropped   *prometheus.Desc
	late      *prometheus.Desc
	malformed *prometheus.Desc
	underruns *prometheus.Desc
	ssrc      *prometheus.Desc
}

// NewCollector создает коллектор для буфера с меткой stream
func NewCollector(buffer *Buffer, stream string) *Collector {
	labels := prometheus.Labels{"stream": stream}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("voice", "jitter", name), help, nil, labels)
	}
	return &Collector{
		buffer:    buffer,
		size:      desc("packets", "Пакетов в буфере"),
		received:  desc("received_total", "Принято пакетов"),
		played:    desc("played_total", "Выдано на воспроизведение"),
		dropped:   desc("dropped_total", "Отброшено при переполнении"),
		late:      desc("late_total", "Поздние и повторные пакеты"),
		malformed: desc("malformed_total", "Датаграммы, которые не удалось разобрать"),
		underruns: desc("underruns_total", "Опустошения буфера во время воспроизведения"),
		ssrc:      desc("ssrc_changes_total", "Смены SSRC источника"),
	}
}

// Describe реализует prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.received
	ch <- c.played
	ch <- c.dropped
	ch <- c.late
	ch <- c.malformed
	ch <- c.underruns
	ch <- c.ssrc
}

// Collect реализует prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.buffer.Statistics()
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size))
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(s.Received))
	ch <- prometheus.MustNewConstMetric(c.played, prometheus.CounterValue, float64(s.Played))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.late, prometheus.CounterValue, float64(s.Late))
	ch <- prometheus.MustNewConstMetric(c.malformed, prometheus.CounterValue, float64(s.Malformed))
	ch <- prometheus.MustNewConstMetric(c.underruns, prometheus.CounterValue, float64(s.Underruns))
	ch <- prometheus.MustNewConstMetric(c.ssrc, prometheus.CounterValue, float64(s.SSRCChanges))
}
