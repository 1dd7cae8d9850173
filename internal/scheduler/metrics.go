package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "internship_scheduler_jobs_scheduled_total",
		Help: "Jobs saved to the job store by type",
	}, []string{"type"})

	jobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "internship_scheduler_jobs_cancelled_total",
		Help: "Cancellation requests processed",
	})

	jobsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "internship_scheduler_jobs_fired_total",
		Help: "Job executions by type and outcome",
	}, []string{"type", "outcome"}) // outcome=success|retry|exhausted|superseded|no_handler

	fallbacksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "internship_scheduler_fallbacks_total",
		Help: "Administrative fallback notifications scheduled after retry exhaustion",
	})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "internship_scheduler_store_errors_total",
		Help: "Job store failures by operation",
	}, []string{"op"})
)

func recordFired(jobType, outcome string) {
	jobsFired.WithLabelValues(jobType, outcome).Inc()
}

func recordStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}
