// Package metrics defines the prometheus collectors exposed at the
// resource daemon's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kernelbox_sessions_active",
			Help: "Number of currently active sandbox sessions",
		},
	)

	SessionCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kernelbox_session_create_duration_seconds",
			Help:    "Time to start a sandbox and connect its kernel",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
	)

	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelbox_executions_total",
			Help: "Total code executions by outcome",
		},
		[]string{"status"}, // "ok", "error", "timeout"
	)

	ExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kernelbox_execution_duration_seconds",
			Help:    "Time code executions spend until the kernel is idle again",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
	)

	FilesTransferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelbox_files_transferred_total",
			Help: "Total file transfers through the resource daemon",
		},
		[]string{"direction"}, // "upload", "download"
	)

	MCPGenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kernelbox_mcp_generations_total",
			Help: "Total MCP tool source generation runs",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		SessionCreateDuration,
		ExecutionsTotal,
		ExecutionDuration,
		FilesTransferred,
		MCPGenerations,
	)
}
