// Package metrics exposes the service's Prometheus collectors. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	answers          *prometheus.CounterVec
	fallbackQueued   prometheus.Counter
	fallbackReplayed prometheus.Counter
	sessionsActive   prometheus.Gauge
	redemptions      *prometheus.CounterVec
	imported         *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizcat",
			Name:      "answers_total",
			Help:      "Submitted answers by outcome (correct, incorrect, duplicate, practice).",
		}, []string{"outcome"}),
		fallbackQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizcat",
			Name:      "answers_fallback_queued_total",
			Help:      "Answers parked in the local fallback store after a failed write.",
		}),
		fallbackReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizcat",
			Name:      "answers_fallback_replayed_total",
			Help:      "Parked answers successfully written on retry.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizcat",
			Name:      "sessions_active",
			Help:      "Quiz sessions currently in progress.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizcat",
			Name:      "reward_redemptions_total",
			Help:      "Reward redemption attempts by result.",
		}, []string{"result"}),
		imported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizcat",
			Name:      "questions_imported_total",
			Help:      "Questions offered for import by source and result.",
		}, []string{"source", "result"}),
	}
	m.registry.MustRegister(
		m.answers, m.fallbackQueued, m.fallbackReplayed, m.sessionsActive, m.redemptions, m.imported,
		prometheus.NewGoCollector(),
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

func (m *Metrics) Answer(outcome string) {
	if m != nil {
		m.answers.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) FallbackQueued() {
	if m != nil {
		m.fallbackQueued.Inc()
	}
}

func (m *Metrics) FallbackReplayed(n int) {
	if m != nil {
		m.fallbackReplayed.Add(float64(n))
	}
}

func (m *Metrics) SessionStarted() {
	if m != nil {
		m.sessionsActive.Inc()
	}
}

func (m *Metrics) SessionEnded() {
	if m != nil {
		m.sessionsActive.Dec()
	}
}

func (m *Metrics) Redemption(result string) {
	if m != nil {
		m.redemptions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Imported(source, result string, n int) {
	if m != nil && n > 0 {
		m.imported.WithLabelValues(source, result).Add(float64(n))
	}
}
