package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions counts attendance submissions by result.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendancehub",
		Name:      "submissions_total",
		Help:      "Attendance submissions by result.",
	}, []string{"result"})

	// ReplacedRecords counts stale records removed for a re-submitted key.
	ReplacedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendancehub",
		Name:      "replaced_records_total",
		Help:      "Stale attendance records deleted after a re-submission or compaction.",
	})

	// PasscodeLookups counts trainer passcode resolutions by result.
	PasscodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendancehub",
		Name:      "passcode_lookups_total",
		Help:      "Trainer passcode lookups by result.",
	}, []string{"result"})

	// Jobs counts background jobs handled by type and result.
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendancehub",
		Name:      "jobs_total",
		Help:      "Background jobs by type and result.",
	}, []string{"type", "result"})

	// HTTPDuration observes request latency by route and status.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendancehub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
