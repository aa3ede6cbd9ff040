// Package metrics exposes Prometheus counters for the watcher pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cvewatch"

// Metrics groups the counters. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	Polls               *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	StateWriteFailures  prometheus.Counter
	TranslationFailures prometheus.Counter
	EnrichmentMisses    prometheus.Counter
	Searches            *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"outcome"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered to the destination channel.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notification dispatch failures.",
		}),
		StateWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_write_failures_total",
			Help:      "Last-seen updates that failed after a successful dispatch.",
		}),
		TranslationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_failures_total",
			Help:      "Translations replaced by placeholder text.",
		}),
		EnrichmentMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_misses_total",
			Help:      "Lookups that produced no scoring data.",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "On-demand searches by reply status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.Polls,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.StateWriteFailures,
		m.TranslationFailures,
		m.EnrichmentMisses,
		m.Searches,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePoll counts a finished poll cycle by outcome.
func (m *Metrics) ObservePoll(outcome string) {
	if m != nil {
		m.Polls.WithLabelValues(outcome).Inc()
	}
}

// ObserveDispatch counts a sent or failed notification.
func (m *Metrics) ObserveDispatch(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotificationsFailed.Inc()
		return
	}
	m.NotificationsSent.Inc()
}

// ObserveStateWriteFailure counts a last-seen write that failed after delivery.
func (m *Metrics) ObserveStateWriteFailure() {
	if m != nil {
		m.StateWriteFailures.Inc()
	}
}

// ObserveTranslationFailure counts a translation that fell back to placeholders.
func (m *Metrics) ObserveTranslationFailure() {
	if m != nil {
		m.TranslationFailures.Inc()
	}
}

// ObserveEnrichmentMiss counts a lookup that returned no severity data.
func (m *Metrics) ObserveEnrichmentMiss() {
	if m != nil {
		m.EnrichmentMisses.Inc()
	}
}

// ObserveSearch counts an on-demand search by reply status.
func (m *Metrics) ObserveSearch(status string) {
	if m != nil {
		m.Searches.WithLabelValues(status).Inc()
	}
}
