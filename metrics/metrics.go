// Package metrics exposes Prometheus collectors for ingestion, retrieval
// and chat, registered on a private registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/poiesic/newsrag/chat"
	"github.com/poiesic/newsrag/core"
	"github.com/poiesic/newsrag/ingestion"
	"github.com/poiesic/newsrag/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsrag"

// Metrics holds every collector of the service.
type Metrics struct {
	registry *prometheus.Registry

	ingestRuns     *prometheus.CounterVec
	ingestDocs     *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	ingestDuration prometheus.Histogram

	retrievals        *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievalResults  prometheus.Histogram

	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
}

var _ chat.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ingestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		ingestDocs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_documents_total",
			Help:      "Documents seen by ingestion, by stage.",
		}, []string{"stage"}),
		sourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_source_failures_total",
			Help:      "Sources that failed after all retries.",
		}, []string{"source"}),
		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Ingestion run duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		retrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Similarity searches by outcome. Failures are labelled by stage.",
		}, []string{"outcome"}),
		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Similarity search latency including query embedding.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		retrievalResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Results returned per search.",
			Buckets:   []float64{0, 1, 3, 5, 10, 25, 50},
		}),

		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by mode and outcome.",
		}, []string{"mode", "outcome"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_turn_duration_seconds",
			Help:      "Chat turn duration.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"mode"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_stream_events_total",
			Help:      "Streamed chat events by type.",
		}, []string{"type"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveIngestion records a finished ingestion run.
func (m *Metrics) ObserveIngestion(summary *ingestion.Summary, err error) {
	m.ingestRuns.WithLabelValues(ingestionOutcome(err)).Inc()
	if summary == nil {
		return
	}
	m.ingestDocs.WithLabelValues("fetched").Add(float64(summary.Fetched))
	m.ingestDocs.WithLabelValues("duplicate").Add(float64(summary.Duplicates))
	m.ingestDocs.WithLabelValues("embedded").Add(float64(summary.Embedded))
	m.ingestDocs.WithLabelValues("skipped").Add(float64(summary.Skipped))
	m.ingestDocs.WithLabelValues("stored").Add(float64(summary.Stored))
	for _, name := range summary.FailedSources() {
		m.sourceFailures.WithLabelValues(name).Inc()
	}
	m.ingestDuration.Observe(summary.Duration.Seconds())
}

func ingestionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ingestion.ErrIngestionInProgress):
		return "rejected"
	default:
		var ie *ingestion.IngestionError
		if errors.As(err, &ie) {
			return "failed_" + string(ie.Stage)
		}
		return "failed"
	}
}

// SearchMonitor returns a monitor that records retrievals.
func (m *Metrics) SearchMonitor() search.SearchMonitor {
	return retrievalMonitor{m}
}

type retrievalMonitor struct {
	m *Metrics
}

func (retrievalMonitor) Start(string)       {}
func (retrievalMonitor) AfterEmbedding(int) {}

func (r retrievalMonitor) Failed(stage search.Stage, _ error, elapsed time.Duration) {
	r.m.retrievals.WithLabelValues("failed_" + string(stage)).Inc()
	r.m.retrievalDuration.Observe(elapsed.Seconds())
}

func (r retrievalMonitor) Finish(results []core.SearchResult, elapsed time.Duration) {
	r.m.retrievals.WithLabelValues("success").Inc()
	r.m.retrievalDuration.Observe(elapsed.Seconds())
	r.m.retrievalResults.Observe(float64(len(results)))
}

// TurnFinished implements chat.Observer.
func (m *Metrics) TurnFinished(mode chat.Mode, state chat.State, cancelled bool, elapsed time.Duration) {
	outcome := "completed"
	switch {
	case cancelled:
		outcome = "cancelled"
	case state != chat.Completed:
		outcome = "errored"
	}
	m.turns.WithLabelValues(string(mode), outcome).Inc()
	m.turnDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// EventSent implements chat.Observer.
func (m *Metrics) EventSent(t chat.EventType) {
	m.events.WithLabelValues(string(t)).Inc()
}
