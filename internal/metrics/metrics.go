package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics собирает счетчики бота для Prometheus. Нулевой указатель ничего не пишет.
type Metrics struct {
	queries         *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	restaurants     prometheus.Gauge
	observations    prometheus.Gauge
}

// MustNewMetrics регистрирует коллекторы в reg; повторная регистрация паникует
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foodbot",
				Name:      "queries_total",
				Help:      "Number of answered queries by kind and result.",
			},
			[]string{"kind", "result"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foodbot",
				Name:      "refreshes_total",
				Help:      "Number of snapshot rebuilds by status.",
			},
			[]string{"status"},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "foodbot",
				Name:      "refresh_duration_seconds",
				Help:      "Time spent fetching messages and rebuilding the table.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		restaurants: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "foodbot",
				Name:      "restaurants",
				Help:      "Restaurants retained in the current table.",
			},
		),
		observations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "foodbot",
				Name:      "observations",
				Help:      "Observations extracted from the current snapshot.",
			},
		),
	}

	reg.MustRegister(m.queries, m.refreshes, m.refreshDuration, m.restaurants, m.observations)
	return m
}

// ObserveQuery отмечает ответ на запрос; empty - ответ без строк
func (m *Metrics) ObserveQuery(kind string, empty bool, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case empty:
		result = "empty"
	}
	m.queries.WithLabelValues(kind, result).Inc()
}

// ObserveRefresh отмечает пересборку снимка
func (m *Metrics) ObserveRefresh(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(status).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

// SetSnapshot обновляет размеры текущего снимка
func (m *Metrics) SetSnapshot(restaurants, observations int) {
	if m == nil {
		return
	}
	m.restaurants.Set(float64(restaurants))
	m.observations.Set(float64(observations))
}
