// Package metrics exposes Prometheus metrics for the reconciliation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics collects counters for every stage of the pipeline. All
// failure modes here are skip-and-retry, so counters are the audit trail for
// how often each degradation actually happens.
type PipelineMetrics struct {
	registry *prometheus.Registry

	FragmentsIngested    *prometheus.CounterVec
	FragmentsRejected    *prometheus.CounterVec
	MergesApplied        prometheus.Counter
	MergeConflicts       prometheus.Counter
	LifecycleTransitions *prometheus.CounterVec
	StaleEvictions       prometheus.Counter
	PredictionsEvaluated prometheus.Counter
	VerificationsTotal   *prometheus.CounterVec
	VerificationsSkipped *prometheus.CounterVec
	ProviderPollErrors   *prometheus.CounterVec
}

func New() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	m := &PipelineMetrics{
		registry: registry,
		FragmentsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funbet_fragments_ingested_total",
				Help: "Fragments accepted into the reconciliation pipeline",
			},
			[]string{"provider"},
		),
		FragmentsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funbet_fragments_rejected_total",
				Help: "Fragments dropped before merging",
			},
			[]string{"reason"},
		),
		MergesApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "funbet_merges_applied_total",
				Help: "Successful canonical record merges",
			},
		),
		MergeConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "funbet_merge_conflicts_total",
				Help: "Conditional writes lost to a concurrent merge and retried",
			},
		),
		LifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funbet_lifecycle_transitions_total",
				Help: "Canonical match lifecycle transitions",
			},
			[]string{"to"},
		),
		StaleEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "funbet_stale_evictions_total",
				Help: "Live matches force-transitioned by the staleness sweeper",
			},
		),
		PredictionsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "funbet_predictions_evaluated_total",
				Help: "Prediction evaluations written (including pre-match re-evaluations)",
			},
		),
		VerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funbet_verifications_total",
				Help: "Prediction verifications recorded",
			},
			[]string{"result"},
		),
		VerificationsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funbet_verifications_skipped_total",
				Help: "Verification attempts deferred to a later cycle",
			},
			[]string{"reason"},
		),
		ProviderPollErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funbet_provider_poll_errors_total",
				Help: "Provider fetches that yielded no fragments this cycle",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		m.FragmentsIngested,
		m.FragmentsRejected,
		m.MergesApplied,
		m.MergeConflicts,
		m.LifecycleTransitions,
		m.StaleEvictions,
		m.PredictionsEvaluated,
		m.VerificationsTotal,
		m.VerificationsSkipped,
		m.ProviderPollErrors,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
