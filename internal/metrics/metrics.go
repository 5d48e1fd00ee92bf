package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ComplaintsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_complaints_submitted_total",
			Help: "Complaints filed, by category",
		},
		[]string{"category"},
	)

	ComplaintTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_complaint_transitions_total",
			Help: "Complaint status transitions",
		},
		[]string{"from", "to"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_rate_limited_total",
			Help: "Requests refused by a rate limiter",
		},
		[]string{"limiter"},
	)

	PrivilegeChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_privilege_changes_total",
			Help: "Admin promote/revoke operations, by outcome",
		},
		[]string{"action", "outcome"},
	)

	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_service_applications_total",
			Help: "Service applications received, by form type",
		},
		[]string{"type"},
	)

	ContentFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_content_flagged_total",
			Help: "Submissions flagged for threatening language, by source",
		},
		[]string{"source"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_complaint_feed_clients",
			Help: "Connected complaint status feed clients",
		},
	)
)
