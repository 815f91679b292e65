package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "outage"

// Metrics holds the Prometheus counters and histograms for the report lifecycle.
type Metrics struct {
	ReportsSubmitted prometheus.Counter
	VotesCast        *prometheus.CounterVec // labels: type={upvote,downvote}
	Resolutions      *prometheus.CounterVec // labels: mode={creator,quorum}
	Confirmations    prometheus.Counter
	Rejections       *prometheus.CounterVec // labels: op, kind={validation,policy,eligibility,not_found,store}

	StatusTransitions *prometheus.CounterVec // labels: from, to
	CredibilityReward prometheus.Counter

	// Persistence and event delivery.
	StoreConflicts  prometheus.Counter
	PublishFailures prometheus.Counter

	OperationDuration *prometheus.HistogramVec // labels: op
}

// NewMetrics creates and registers all lifecycle metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates Metrics registered on reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_submitted_total",
			Help:      "Total outage reports accepted.",
		}),
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Votes recorded by vote type.",
		}, []string{"type"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Reports resolved, by whether the reporter or a quorum resolved them.",
		}, []string{"mode"}),
		Confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_confirmations_total",
			Help:      "Restoration confirmations recorded.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected operations by operation and error kind.",
		}, []string{"op", "kind"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Report status changes by previous and new status.",
		}, []string{"from", "to"}),
		CredibilityReward: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credibility_rewards_total",
			Help:      "Credibility rewards granted for aligned votes.",
		}),
		StoreConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_conflicts_total",
			Help:      "Optimistic concurrency conflicts that forced a retry.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Lifecycle events that could not be published.",
		}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of lifecycle operations including persistence.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReportsSubmitted,
		m.VotesCast,
		m.Resolutions,
		m.Confirmations,
		m.Rejections,
		m.StatusTransitions,
		m.CredibilityReward,
		m.StoreConflicts,
		m.PublishFailures,
		m.OperationDuration,
	}
}
