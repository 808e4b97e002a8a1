package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Reconciliation metrics
	ReconcileOutcomes *prometheus.CounterVec
	ReconcilePolls    prometheus.Histogram
	ActivePolls       prometheus.Gauge

	// Callback metrics
	CallbackVerdicts *prometheus.CounterVec

	// Credential metrics
	TokenExchanges *prometheus.CounterVec

	// Refund metrics
	Refunds *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Worker metrics
	WorkerSweeps             *prometheus.CounterVec
	WorkerProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of provider API requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Provider API request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		),
		ReconcileOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_outcomes_total",
				Help:      "Total number of reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		ReconcilePolls: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_polls",
				Help:      "Number of status polls per reconciliation",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
			},
		),
		ActivePolls: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_polls",
				Help:      "Number of reconciliations currently polling the provider",
			},
		),
		CallbackVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callback_verdicts_total",
				Help:      "Total number of provider verdicts applied by channel, state and whether the order changed",
			},
			[]string{"channel", "state", "applied"},
		),
		TokenExchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_exchanges_total",
				Help:      "Total number of OAuth2 token exchanges by grant type and outcome",
			},
			[]string{"grant_type", "outcome"},
		),
		Refunds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refunds_total",
				Help:      "Total number of refunds by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		WorkerSweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_resynced_total",
				Help:      "Total number of stale transactions re-synced by the worker",
			},
			[]string{"status"},
		),
		WorkerProcessingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_sweep_duration_seconds",
				Help:      "Worker sweep duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}

	reg.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.ReconcileOutcomes,
		m.ReconcilePolls,
		m.ActivePolls,
		m.CallbackVerdicts,
		m.TokenExchanges,
		m.Refunds,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
		m.WorkerSweeps,
		m.WorkerProcessingDuration,
	)

	return m
}

// NewNopMetrics returns metrics registered against a throwaway registry.
func NewNopMetrics() *Metrics {
	return NewMetrics("nop", prometheus.NewRegistry())
}
