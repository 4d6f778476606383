// Package metrics provides Prometheus instrumentation for the support desk.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	intentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_intents_total",
			Help: "Classified messages by intent",
		},
		[]string{"intent"},
	)

	workflowPathsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_workflow_paths_total",
			Help: "Workflow paths taken per inbound message",
		},
		[]string{"path"},
	)

	stageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_stage_runs_total",
			Help: "Pipeline stage executions",
		},
		[]string{"stage", "status"}, // status: success, fallback
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportdesk_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	generationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_generation_calls_total",
			Help: "Text-generation calls",
		},
		[]string{"model", "status"}, // status: success, error
	)

	generationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportdesk_generation_duration_seconds",
			Help:    "Text-generation call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	storeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_store_errors_total",
			Help: "Record store operations that failed",
		},
		[]string{"operation"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportdesk_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportdesk_active_connections",
			Help: "Open client channels",
		},
	)
)

// RecordIntent counts one classified message.
func RecordIntent(intent string) {
	intentsTotal.WithLabelValues(intent).Inc()
}

// RecordPath counts one workflow path selection.
func RecordPath(path string) {
	workflowPathsTotal.WithLabelValues(path).Inc()
}

// RecordStage records a stage execution.
func RecordStage(stage string, fallback bool, d time.Duration) {
	status := "success"
	if fallback {
		status = "fallback"
	}
	stageRunsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordGeneration records a text-generation call.
func RecordGeneration(model string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	generationCallsTotal.WithLabelValues(model, status).Inc()
	generationDurationSeconds.WithLabelValues(model).Observe(d.Seconds())
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	storeErrorsTotal.WithLabelValues(operation).Inc()
}

// SetActiveSessions reports the session registry size.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ConnectionOpened increments the open channel gauge.
func ConnectionOpened() { activeConnections.Inc() }

// ConnectionClosed decrements the open channel gauge.
func ConnectionClosed() { activeConnections.Dec() }

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
