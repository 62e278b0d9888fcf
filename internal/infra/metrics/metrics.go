// Package metrics exposes business and HTTP counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"archer/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "archer"

// Registry owns every collector of the service.
type Registry struct {
	registry      *prometheus.Registry
	signIns       *prometheus.CounterVec
	refills       *prometheus.CounterVec
	scores        *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// NewRegistry registers the collectors on a private registry together with
// the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Finished sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		refills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_refills_total",
			Help:      "Entitlement recomputations that changed an account.",
		}, []string{"trigger"}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_recorded_total",
			Help:      "Recorded scores by event kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.signIns,
		r.refills,
		r.scores,
		r.httpRequests,
		r.httpDurations,
	)

	return r
}

var _ service.MetricsRecorder = (*Registry)(nil)

// ObserveSignIn counts a finished sign-in attempt.
func (r *Registry) ObserveSignIn(method, outcome string) {
	r.signIns.WithLabelValues(method, outcome).Inc()
}

// ObserveRefill counts a recomputation that changed an account.
func (r *Registry) ObserveRefill(trigger string) {
	r.refills.WithLabelValues(trigger).Inc()
}

// ObserveScore counts a recorded score.
func (r *Registry) ObserveScore(kind string) {
	r.scores.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
