// Package metrics exposes Prometheus collectors for search and lifecycle
// activity on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lexhub"

type Metrics struct {
	registry      *prometheus.Registry
	searches      *prometheus.CounterVec
	results       prometheus.Counter
	searchLatency prometheus.Histogram
	transitions   *prometheus.CounterVec
	alerts        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Provider searches by sort key and outcome.",
		}, []string{"sort", "outcome"}),
		results: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Providers returned across all searches.",
		}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent loading and ranking candidates.",
			Buckets:   prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by entity, action and outcome.",
		}, []string{"entity", "action", "outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dispatched_total",
			Help:      "Side effects handed to the alert queue.",
		}, []string{"kind", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searches, m.results, m.searchLatency, m.transitions, m.alerts,
	)
	return m
}

// ObserveSearch records one search call. outcome is "ok" or an error kind.
func (m *Metrics) ObserveSearch(sort, outcome string, results int, took time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(sort, outcome).Inc()
	m.results.Add(float64(results))
	m.searchLatency.Observe(took.Seconds())
}

func (m *Metrics) ObserveTransition(entity, action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, action, outcome).Inc()
}

func (m *Metrics) ObserveAlert(kind, outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
