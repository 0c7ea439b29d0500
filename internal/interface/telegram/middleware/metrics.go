package middleware

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS MIDDLEWARE
// Exports bot traffic to Prometheus: handled updates per command, recorded
// scores, acknowledgements and limiter decisions.
// ══════════════════════════════════════════════════════════════════════════════

// Result labels of a recorded score.
const (
	ScoreInserted = "inserted"
	ScoreUpdated  = "updated"
)

// Acknowledgement labels.
const (
	AckReaction = "reaction"
	AckReply    = "reply"
	AckNone     = "none"
	AckFailed   = "failed"
)

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// Registerer receives the collectors; nil means a private registry.
	Registerer prometheus.Registerer

	// SlowRequestThreshold triggers OnSlowRequest.
	SlowRequestThreshold time.Duration

	// OnSlowRequest is called when a request takes longer than the threshold.
	OnSlowRequest func(command string, d time.Duration, userID int64)
}

// DefaultMetricsConfig returns sensible defaults for metrics middleware.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SlowRequestThreshold: 2 * time.Second,
	}
}

// MetricsMiddleware collects bot metrics.
type MetricsMiddleware struct {
	config MetricsConfig

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
	scores      *prometheus.CounterVec
	acks        *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	panics      prometheus.Counter
}

// NewMetricsMiddleware creates and registers the bot collectors.
func NewMetricsMiddleware(config MetricsConfig) (*MetricsMiddleware, error) {
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &MetricsMiddleware{
		config: config,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "requests_total",
			Help:      "Handled updates by command and result.",
		}, []string{"command", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "request_duration_seconds",
			Help:      "Update handling time by command.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"command"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "active_requests",
			Help:      "Updates being handled right now.",
		}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "scores_recorded_total",
			Help:      "Stored results by outcome.",
		}, []string{"outcome"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "acknowledgements_total",
			Help:      "How recorded results were acknowledged.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "rate_limited_total",
			Help:      "Commands rejected by the rate limiter.",
		}, []string{"command"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wordle",
			Subsystem: "bot",
			Name:      "panics_total",
			Help:      "Recovered handler panics.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.active, m.scores, m.acks, m.rateLimited, m.panics} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register bot metrics: %w", err)
		}
	}
	return m, nil
}

// RequestContext tracks one update from Start to End.
type RequestContext struct {
	Command   string
	UserID    int64
	StartTime time.Time

	middleware *MetricsMiddleware
}

// Start begins tracking a new request.
func (m *MetricsMiddleware) Start(command string, userID int64) *RequestContext {
	m.active.Inc()
	return &RequestContext{
		Command:    command,
		UserID:     userID,
		StartTime:  time.Now(),
		middleware: m,
	}
}

// End completes tracking for a request.
func (rc *RequestContext) End(err error) {
	m := rc.middleware
	d := time.Since(rc.StartTime)

	m.active.Dec()

	result := "success"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(rc.Command, result).Inc()
	m.duration.WithLabelValues(rc.Command).Observe(d.Seconds())

	if m.config.OnSlowRequest != nil && m.config.SlowRequestThreshold > 0 && d > m.config.SlowRequestThreshold {
		m.config.OnSlowRequest(rc.Command, d, rc.UserID)
	}
}

// RecordScore counts a stored result.
func (m *MetricsMiddleware) RecordScore(outcome string) {
	m.scores.WithLabelValues(outcome).Inc()
}

// RecordAck counts how a result was acknowledged.
func (m *MetricsMiddleware) RecordAck(kind string) {
	m.acks.WithLabelValues(kind).Inc()
}

// RecordRateLimited counts a rejected command.
func (m *MetricsMiddleware) RecordRateLimited(command string) {
	m.rateLimited.WithLabelValues(command).Inc()
}

// RecordPanic counts a recovered panic.
func (m *MetricsMiddleware) RecordPanic() {
	m.panics.Inc()
}
