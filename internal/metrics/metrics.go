// Package metrics holds the pipeline's prometheus collectors. Each Metrics value owns its
// registry so several can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blissbuilder"

// Fallback kinds.
const (
	FallbackTheme  = "theme"
	FallbackPrompt = "prompt"
	FallbackVideo  = "video"
)

type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageAttempts *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by result",
		}, []string{"result"}), // result=success|failure
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"stage", "result"}),
		stageAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_attempts_total",
			Help:      "External call attempts made by each stage",
		}, []string{"stage"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallback content used, by kind",
		}, []string{"kind"}), // kind=theme|prompt|video
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
}

func (m *Metrics) RecordRun(success bool, at time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result(success)).Inc()
	if success {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

func (m *Metrics) RecordStage(stage string, success bool, attempts int, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, result(success)).Observe(d.Seconds())
	if attempts > 0 {
		m.stageAttempts.WithLabelValues(stage).Add(float64(attempts))
	}
}

func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
