package monitoring

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes
const (
	OutcomeScored = "scored"
	OutcomeEmpty  = "empty"
)

// Metrics holds the service's prometheus collectors plus a few counters surfaced on /health
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Evaluations     *prometheus.CounterVec
	ScoreHistogram  prometheus.Histogram
	RulesFired      *prometheus.CounterVec
	EvaluationTimes prometheus.Histogram

	ClassifierRequests *prometheus.CounterVec
	ClassifierDuration prometheus.Histogram
	BreakerState       prometheus.Gauge
	BreakerChanges     *prometheus.CounterVec

	PollerCycles  *prometheus.CounterVec
	PollerSkipped prometheus.Counter

	RateLimitBlocks    prometheus.Counter
	RateLimitFallbacks prometheus.Counter
	RateLimitErrors    prometheus.Counter

	requestCount int64
	errorCount   int64
	startTime    time.Time
}

// NewMetrics registers all collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		Evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approachability_evaluations_total",
				Help: "Feedback evaluations by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ScoreHistogram: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "approachability_score",
				Help:    "Distribution of approachability scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		RulesFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approachability_rules_fired_total",
				Help: "Feedback rules fired by rule name",
			},
			[]string{"rule"},
		),
		EvaluationTimes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "approachability_evaluation_duration_seconds",
				Help:    "Time spent evaluating one snapshot",
				Buckets: []float64{.000001, .00001, .0001, .001, .01},
			},
		),

		ClassifierRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_requests_total",
				Help: "Classification service requests by outcome",
			},
			[]string{"outcome"},
		),
		ClassifierDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "classifier_request_duration_seconds",
				Help:    "Classification service round trip in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "classifier_circuit_breaker_state",
				Help: "Classifier circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
		),
		BreakerChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_circuit_breaker_state_changes_total",
				Help: "Classifier circuit breaker transitions by new state",
			},
			[]string{"state"},
		),

		PollerCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poller_cycles_total",
				Help: "Frame poller cycles by outcome",
			},
			[]string{"outcome"},
		),
		PollerSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "poller_ticks_skipped_total",
				Help: "Ticks skipped because a classification was still in flight",
			},
		),

		RateLimitBlocks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_blocks_total",
				Help: "Requests rejected by the IP rate limiter",
			},
		),
		RateLimitFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_fallback_total",
				Help: "Rate limit checks served by the in-memory limiter",
			},
		),
		RateLimitErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_redis_errors_total",
				Help: "Redis errors seen by the rate limiter",
			},
		),

		startTime: time.Now(),
	}
}

// RecordRequest records one finished HTTP request
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	atomic.AddInt64(&m.requestCount, 1)
	if status >= 400 {
		atomic.AddInt64(&m.errorCount, 1)
	}

	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEvaluation records one engine run. A nil result counts as an empty evaluation.
func (m *Metrics) RecordEvaluation(source string, scored bool, score int, rules []string, duration time.Duration) {
	if !scored {
		m.Evaluations.WithLabelValues(source, OutcomeEmpty).Inc()
		return
	}

	m.Evaluations.WithLabelValues(source, OutcomeScored).Inc()
	m.ScoreHistogram.Observe(float64(score))
	m.EvaluationTimes.Observe(duration.Seconds())
	for _, rule := range rules {
		m.RulesFired.WithLabelValues(rule).Inc()
	}
}

// RecordClassifierCall records one classification service round trip
func (m *Metrics) RecordClassifierCall(outcome string, duration time.Duration) {
	m.ClassifierRequests.WithLabelValues(outcome).Inc()
	m.ClassifierDuration.Observe(duration.Seconds())
}

// SetBreakerState records a breaker transition to the named state. Value is 0 closed, 1 half-open, 2 open.
func (m *Metrics) SetBreakerState(state string, value int) {
	m.BreakerState.Set(float64(value))
	m.BreakerChanges.WithLabelValues(state).Inc()
}

// GetStats returns a small summary for the health endpoint
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.requestCount)
	errors := atomic.LoadInt64(&m.errorCount)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":     time.Since(m.startTime).Seconds(),
		"total_requests":     requests,
		"error_count":        errors,
		"error_rate_percent": errorRate,
		"start_time":         m.startTime.Format(time.RFC3339),
	}
}
