// ABOUTME: Prometheus counters for worker outcomes, exported on /metrics
// ABOUTME: by serve mode. Registered on the default registry via promauto.
package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_jobs_claimed_total",
		Help: "Jobs claimed by this process's workers.",
	})
	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_jobs_completed_total",
		Help: "Jobs that finished with exit code 0.",
	})
	jobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_jobs_retried_total",
		Help: "Failed jobs rescheduled with backoff.",
	})
	jobsDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_jobs_dead_total",
		Help: "Jobs moved to the dead-letter queue.",
	})
	jobsTimedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queuectl_jobs_timed_out_total",
		Help: "Jobs force-terminated at the per-job timeout.",
	})
)
