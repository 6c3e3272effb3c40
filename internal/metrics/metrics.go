// Package metrics defines the Prometheus collectors for the turn pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moodclaw"

// Turn outcomes.
const (
	OutcomeReplied  = "replied"
	OutcomeShortcut = "shortcut"
	OutcomeCommand  = "command"
	OutcomeFailed   = "failed"
)

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds the collectors updated by the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Turns              *prometheus.CounterVec
	ShortcutHits       *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GenerationErrors   *prometheus.CounterVec
	DedupRetries       prometheus.Counter
	TraitUpdates       prometheus.Counter
	PersistErrors      *prometheus.CounterVec
}

// New creates the pipeline collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Inbound messages handled, by outcome.",
		}, []string{"outcome"}),
		ShortcutHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortcut_hits_total",
			Help:      "Canned replies sent, by rule.",
		}, []string{"rule"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of a single generation call in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		GenerationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Failed generation calls, by error kind.",
		}, []string{"kind"}),
		DedupRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_retries_total",
			Help:      "Regenerations caused by a reply that repeated channel history.",
		}),
		TraitUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trait_updates_total",
			Help:      "Personality adaptation steps applied.",
		}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed state document writes, by document.",
		}, []string{"document"}),
	}

	reg.MustRegister(
		m.Turns, m.ShortcutHits, m.GenerationDuration, m.GenerationErrors,
		m.DedupRetries, m.TraitUpdates, m.PersistErrors,
	)
	return m
}

func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveShortcut(rule string) {
	if m == nil {
		return
	}
	m.ShortcutHits.WithLabelValues(rule).Inc()
}

func (m *Metrics) ObserveGeneration(d time.Duration, errKind string) {
	if m == nil {
		return
	}
	m.GenerationDuration.Observe(d.Seconds())
	if errKind != "" {
		m.GenerationErrors.WithLabelValues(errKind).Inc()
	}
}

func (m *Metrics) ObserveDedupRetry() {
	if m == nil {
		return
	}
	m.DedupRetries.Inc()
}

func (m *Metrics) ObserveTraitUpdate() {
	if m == nil {
		return
	}
	m.TraitUpdates.Inc()
}

func (m *Metrics) ObservePersistError(document string) {
	if m == nil {
		return
	}
	m.PersistErrors.WithLabelValues(document).Inc()
}
