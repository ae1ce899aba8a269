// Package metrics defines the prometheus collectors exported by the worker
// and submission API processes, grounded in the same client_golang/promauto
// pattern the rest of the pack's services use for request/queue
// observability.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksProcessed counts task deliveries the Task Worker finished,
	// labeled by the queue outcome it acknowledged (success/failure/retry).
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prreview",
		Subsystem: "worker",
		Name:      "tasks_processed_total",
		Help:      "Total task deliveries processed, by queue outcome.",
	}, []string{"outcome"})

	// TaskDuration observes wall-clock time from claim to terminal status.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prreview",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Time spent processing one task end to end.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// FilesAnalyzed counts per-file analyses, by whether they succeeded or
	// were skipped-and-logged per spec.md §4.7's partial-failure rule.
	FilesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prreview",
		Subsystem: "worker",
		Name:      "files_analyzed_total",
		Help:      "Per-file analyses attempted, by result.",
	}, []string{"result"})

	// QueueDepth reports the approximate backlog per priority lane.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prreview",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Approximate number of queued tickets per priority.",
	}, []string{"priority"})

	// QueueReclaimed counts tickets re-delivered after a visibility
	// timeout, spec.md §4.1.
	QueueReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prreview",
		Subsystem: "queue",
		Name:      "reclaimed_total",
		Help:      "Tickets whose visibility timeout expired and were re-delivered.",
	})

	// HTTPRequests counts Submission API requests by route and status
	// code, spec.md §6.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prreview",
		Subsystem: "httpapi",
		Name:      "requests_total",
		Help:      "Submission API requests, by route and status code.",
	}, []string{"route", "status"})
)

// Handler exposes the process's registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
