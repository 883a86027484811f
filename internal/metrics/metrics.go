// Package metrics provides Prometheus instrumentation for the portal's
// matching engine: reconciliation runs, match mutations, internship queries
// and the suggestion push channel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MatchingRuns counts reconciliation runs by result: "ok", "failed" or
	// "locked" (rejected because another run held the lock).
	MatchingRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_matching_runs_total",
		Help: "Total number of matching reconciliation runs",
	}, []string{"result"})

	// MatchingRunDuration records how long a reconciliation transaction took.
	MatchingRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "portal_matching_run_duration_seconds",
		Help:    "Duration of matching reconciliation runs in seconds",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	// PairsEvaluated counts student × mentor pairs scored.
	PairsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_matching_pairs_evaluated_total",
		Help: "Total number of student-mentor pairs scored",
	})

	// MatchesCreated counts new suggested matches.
	MatchesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_matches_created_total",
		Help: "Total number of suggested matches created",
	})

	// MatchesUpdated counts score refreshes on suggested matches.
	MatchesUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_matches_updated_total",
		Help: "Total number of suggested match scores refreshed",
	})

	// MatchTransitions counts human-driven status changes by target status.
	MatchTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_match_transitions_total",
		Help: "Total number of match status transitions",
	}, []string{"to"})

	// InternshipQueries counts matched-internship lookups by cache outcome:
	// "hit", "miss" or "bypass" (no cache configured).
	InternshipQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_internship_queries_total",
		Help: "Total number of matched internship queries",
	}, []string{"cache"})

	// PushConnections tracks open suggestion WebSocket connections.
	PushConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_push_connections",
		Help: "Current number of suggestion push connections",
	})

	// SuggestionsPushed counts suggestion events written to clients.
	SuggestionsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_suggestions_pushed_total",
		Help: "Total number of suggestion events delivered over WebSocket",
	})
)

func init() {
	prometheus.MustRegister(
		MatchingRuns,
		MatchingRunDuration,
		PairsEvaluated,
		MatchesCreated,
		MatchesUpdated,
		MatchTransitions,
		InternshipQueries,
		PushConnections,
		SuggestionsPushed,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
