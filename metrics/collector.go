// Package metrics exposes the relay's Prometheus instruments.
package metrics

import (
	"strconv"
	"time"

	"voicerelay/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector records turn, provider and HTTP metrics. A nil *Collector is a no-op.
type Collector struct {
	// turn metrics
	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	// provider metrics
	providerCallsTotal   *prometheus.CounterVec
	providerCallDuration *prometheus.HistogramVec
	synthesisTotal       *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	activeConnections prometheus.Gauge

	logger *core.Logger
}

// NewCollector registers every instrument on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer, logger *core.Logger) *Collector {
	if logger == nil {
		logger = core.GetLogger()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(map[string]any{"component": "metrics"}),
	}

	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns",
		},
		[]string{"kind", "outcome"},
	)

	c.turnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	c.providerCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of upstream provider calls",
		},
		[]string{"stage", "provider", "outcome"},
	)

	c.providerCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Upstream provider call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage", "provider"},
	)

	c.synthesisTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_results_total",
			Help:      "Speech synthesis results by serving provider",
		},
		[]string{"provider", "retried"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.activeConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of open WebSocket connections",
		},
	)

	c.logger.Debug("metrics collector initialized")
	return c
}

// RecordTurn records a finished turn. outcome is OutcomeOK or a short failure reason.
func (c *Collector) RecordTurn(kind, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(kind, outcome).Inc()
	c.turnDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordProviderCall records one upstream call for stage (stt, llm, tts).
func (c *Collector) RecordProviderCall(stage, provider string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.providerCallsTotal.WithLabelValues(stage, provider, outcome).Inc()
	c.providerCallDuration.WithLabelValues(stage, provider).Observe(duration.Seconds())
}

// RecordSynthesis records which provider served a synthesis. provider is
// empty when every attempt failed.
func (c *Collector) RecordSynthesis(provider string, retried bool) {
	if c == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	c.synthesisTotal.WithLabelValues(provider, strconv.FormatBool(retried)).Inc()
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.activeConnections.Inc()
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.activeConnections.Dec()
}
