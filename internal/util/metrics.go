package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_requests_created_total",
		Help: "Total number of purchase requests created",
	}, []string{"type"})

	RequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_request_transitions_total",
		Help: "Total number of accepted purchase request status changes",
	}, []string{"from", "to"})

	RequestFollowUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_request_follow_ups_total",
		Help: "Total number of follow-up remarks recorded",
	})

	RequestOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_request_operations_failed_total",
		Help: "Total number of rejected purchase request operations",
	}, []string{"operation", "reason"})

	DuplicateSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duplicate_submissions_total",
		Help: "Total number of operations refused because their idempotency key was replayed",
	}, []string{"operation"})

	InventoryChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_changes_total",
		Help: "Total number of inventory item mutations",
	}, []string{"action"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "login_attempts_total",
		Help: "Total number of login attempts",
	}, []string{"outcome"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notification emails by outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
