package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess     = "success"
	OutcomeRemoteError = "remote_error"
	OutcomeTimeout     = "timeout"
	OutcomeUnreachable = "unreachable"
	OutcomeMalformed   = "malformed"
	OutcomeTransport   = "transport_error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legosorter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legosorter",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	mcpExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legosorter",
			Subsystem: "mcp",
			Name:      "executions_total",
			Help:      "Scripts sent to the host, by outcome.",
		},
		[]string{"outcome"},
	)
	mcpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legosorter",
			Subsystem: "mcp",
			Name:      "execution_duration_seconds",
			Help:      "Wall time from dial to decoded response.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"outcome"},
	)
	mcpRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "legosorter",
			Subsystem: "mcp",
			Name:      "retries_total",
			Help:      "Whole-script re-executions scheduled after a failure.",
		},
	)
	httpRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legosorter",
			Subsystem: "http",
			Name:      "rejections_total",
			Help:      "Requests refused before reaching the host, by reason.",
		},
		[]string{"reason"},
	)
	stageRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legosorter",
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Pipeline stage runs, by stage and status.",
		},
		[]string{"stage", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, httpRejections, mcpExecutions, mcpDuration, mcpRetries, stageRuns)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordRejection(reason string) {
	RegisterMetrics()
	httpRejections.WithLabelValues(reason).Inc()
}

func RecordExecution(outcome string, duration time.Duration) {
	RegisterMetrics()
	mcpExecutions.WithLabelValues(outcome).Inc()
	mcpDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordRetry() {
	RegisterMetrics()
	mcpRetries.Inc()
}

func RecordStage(stage, status string) {
	RegisterMetrics()
	stageRuns.WithLabelValues(stage, status).Inc()
}
