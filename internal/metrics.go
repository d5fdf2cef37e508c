package internal

import "github.com/prometheus/client_golang/prometheus"

var (
	SchedulerRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of completed scheduler runs",
		},
	)

	SchedulerOrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_orders_created_total",
			Help: "Total number of auto-orders materialized by the scheduler",
		},
	)

	SchedulerCustomerErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_customer_errors_total",
			Help: "Total number of customers whose order generation failed",
		},
	)

	SchedulerRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Duration of a full scheduler run",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_attempts_total",
			Help: "Total number of analytics dispatch attempts per endpoint",
		},
		[]string{"endpoint"},
	)

	DispatchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_errors_total",
			Help: "Total number of network-level analytics dispatch failures per endpoint",
		},
		[]string{"endpoint"},
	)

	DispatchSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_skipped_total",
			Help: "Total number of dispatches skipped because the ledger already holds the event",
		},
	)

	DispatchDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_dropped_total",
			Help: "Total number of dispatch jobs dropped because the queue was full",
		},
	)

	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Total number of requests denied by the rate limiter",
		},
	)
)

// RegisterMetrics registers all collectors with the default registry.
func RegisterMetrics() {
	prometheus.MustRegister(SchedulerRunsTotal)
	prometheus.MustRegister(SchedulerOrdersCreatedTotal)
	prometheus.MustRegister(SchedulerCustomerErrorsTotal)
	prometheus.MustRegister(SchedulerRunDuration)
	prometheus.MustRegister(DispatchAttemptsTotal)
	prometheus.MustRegister(DispatchErrorsTotal)
	prometheus.MustRegister(DispatchSkippedTotal)
	prometheus.MustRegister(DispatchDroppedTotal)
	prometheus.MustRegister(RateLimitDeniedTotal)
}
