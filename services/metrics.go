package services

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects proxy counters on a private registry so that several
// services can coexist in one process (tests, CLI one-shots).
type Metrics struct {
	Registry *prometheus.Registry

	gateRejections    *prometheus.CounterVec
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	parseFallbacks    *prometheus.CounterVec
	warmPings         *prometheus.CounterVec
}

func NewMetrics(gate *ConcurrencyGate) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gate_active",
		Help: "Executions currently holding a slot",
	}, func() float64 { return float64(gate.Status().Active) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gate_queued",
		Help: "Callers waiting for a slot",
	}, func() float64 { return float64(gate.Status().Queued) })

	return &Metrics{
		Registry: registry,
		gateRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_rejections_total",
			Help: "Admissions refused by the concurrency gate",
		}, []string{"reason"}),
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "executions_total",
			Help: "Completed worker executions",
		}, []string{"kind", "status"}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "execution_duration_seconds",
			Help:    "Wall-clock duration of worker executions",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 900},
		}, []string{"kind"}),
		parseFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parse_fallbacks_total",
			Help: "Executions whose output needed a fallback parse tier",
		}, []string{"tier"}),
		warmPings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warm_pings_total",
			Help: "Warm keeper invocations by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordRejection(reason string) {
	m.gateRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordExecution(kind, status string, parseTier int, duration time.Duration) {
	m.executionsTotal.WithLabelValues(kind, status).Inc()
	m.executionDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if parseTier > 1 {
		m.parseFallbacks.WithLabelValues(strconv.Itoa(parseTier)).Inc()
	}
}

func (m *Metrics) RecordWarmPing(outcome string) {
	m.warmPings.WithLabelValues(outcome).Inc()
}
