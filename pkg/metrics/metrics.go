// Package metrics exposes prometheus instruments for the dialogue pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcome labels.
const (
	OutcomeHandled   = "handled"
	OutcomeMenu      = "menu"
	OutcomeExpired   = "expired"
	OutcomeRedirect  = "auth_redirect"
	OutcomeFailure   = "handler_failure"
	OutcomeExit      = "exit"
	OutcomeMalformed = "malformed"
)

var (
	// MessagesTotal counts admitted inbound messages by channel and outcome.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialogue",
		Name:      "messages_total",
		Help:      "Inbound messages processed, by channel and dispatch outcome.",
	}, []string{"channel", "outcome"})

	// DuplicatesTotal counts messages rejected by the deduplicator.
	DuplicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialogue",
		Name:      "duplicates_total",
		Help:      "Inbound messages short-circuited as duplicates.",
	}, []string{"channel"})

	// DeliveriesTotal counts outbound provider deliveries by status.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dialogue",
		Name:      "deliveries_total",
		Help:      "Outbound deliveries attempted, by channel and status.",
	}, []string{"channel", "status"})

	// DispatchDuration observes end-to-end dispatch latency per channel.
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dialogue",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent inside the dispatcher per message.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"channel"})
)
