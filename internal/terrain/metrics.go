package terrain

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики проходов генерации
type Metrics struct {
	chunks       prometheus.Counter
	failures     prometheus.Counter
	zones        prometheus.Gauge
	passDuration prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg
// (при nil создаётся отдельный регистр без экспорта).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonegen",
			Name:      "chunks_generated_total",
			Help:      "Общее число сгенерированных и зафиксированных чанков.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zonegen",
			Name:      "generation_failures_total",
			Help:      "Проходы генерации, прерванные ошибкой или отменой.",
		}),
		zones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zonegen",
			Name:      "zones",
			Help:      "Число зон в текущей раскладке.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "zonegen",
			Name:      "pass_duration_seconds",
			Help:      "Длительность прохода генерации базовой карты.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(m.chunks, m.failures, m.zones, m.passDuration)
	return m
}

func (m *Metrics) observePass(start time.Time, chunks int, err error) {
	m.passDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.Inc()
		return
	}
	m.chunks.Add(float64(chunks))
}
