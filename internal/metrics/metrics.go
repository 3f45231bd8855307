// Package metrics records service metrics in a Prometheus registry.
//
// Every method is safe on a nil *Recorder so components can take an
// optional recorder without guarding each call.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matchday"

// Common label keys.
const (
	LabelMethod   = "method"
	LabelRoute    = "route"
	LabelStatus   = "status"
	LabelProvider = "provider"
	LabelResult   = "result"
	LabelCorrect  = "correct"
)

// Recorder owns the collectors and the registry they are exposed from.
type Recorder struct {
	registry *prometheus.Registry

	providerAttempts  *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	providerRateLimit *prometheus.CounterVec
	evaluations       *prometheus.CounterVec
	scored            *prometheus.CounterVec
	submissions       prometheus.Counter
	snapshots         *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// NewRecorder builds a Recorder on a fresh registry that also carries the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		providerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Match provider requests by outcome.",
		}, []string{LabelProvider, LabelResult}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Match provider request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelProvider}),
		providerRateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_rate_limited_total",
			Help:      "Match provider responses with HTTP 429.",
		}, []string{LabelProvider}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluation runs by result status.",
		}, []string{LabelResult}),
		scored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_scored_total",
			Help:      "Predictions transitioned to counted.",
		}, []string{LabelCorrect}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_submitted_total",
			Help:      "Predictions accepted from users.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_snapshots_total",
			Help:      "Leaderboard snapshot uploads by outcome.",
		}, []string{LabelResult}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{LabelMethod, LabelRoute, LabelStatus}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelMethod, LabelRoute}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.providerAttempts,
		r.providerLatency,
		r.providerRateLimit,
		r.evaluations,
		r.scored,
		r.submissions,
		r.snapshots,
		r.httpRequests,
		r.httpLatency,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordProviderAttempt counts one upstream call and observes its latency.
func (r *Recorder) RecordProviderAttempt(provider string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.providerAttempts.WithLabelValues(provider, result).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordRateLimit counts a 429 from the provider.
func (r *Recorder) RecordRateLimit(provider string) {
	if r == nil {
		return
	}
	r.providerRateLimit.WithLabelValues(provider).Inc()
}

// RecordEvaluation counts one evaluation run by its result status.
func (r *Recorder) RecordEvaluation(status string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(status).Inc()
}

// RecordScored counts one prediction moved to counted.
func (r *Recorder) RecordScored(correct bool) {
	if r == nil {
		return
	}
	r.scored.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (r *Recorder) RecordSubmission() {
	if r == nil {
		return
	}
	r.submissions.Inc()
}

func (r *Recorder) RecordSnapshot(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.snapshots.WithLabelValues(result).Inc()
}

// RecordHTTPRequest tracks one served request. route should be the chi
// route pattern, not the raw path, to keep label cardinality bounded.
func (r *Recorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}
