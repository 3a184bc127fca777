// Package metrics holds the Prometheus collectors for the publishing pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedTotal counts documents that reached the channel and the catalog.
	PublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docbot_published_total",
		Help: "Documents published to the channel and recorded in the catalog.",
	}, []string{"category"})

	// PublishFailuresTotal counts publishes that stopped at a pipeline stage.
	PublishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docbot_publish_failures_total",
		Help: "Publishes that failed, by pipeline stage.",
	}, []string{"stage"})

	// StampResultsTotal counts stamping outcomes by format and status.
	StampResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docbot_stamp_results_total",
		Help: "Stamping outcomes by document format and status.",
	}, []string{"format", "status"})

	// ArchiveMembersTotal counts archive members by outcome.
	ArchiveMembersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docbot_archive_members_total",
		Help: "Archive members processed during fan-out, by outcome.",
	}, []string{"outcome"})

	// PublishDuration observes the time spent in one PublishOne call.
	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docbot_publish_duration_seconds",
		Help:    "Time spent publishing a single document.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// ScheduledJobs tracks deferred publishes waiting to run.
	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docbot_scheduled_jobs",
		Help: "Deferred publishes currently registered with the scheduler.",
	})
)
