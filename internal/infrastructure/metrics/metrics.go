package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection registry metrics
var (
	// OpenConnections tracks registered push connections by transport type
	OpenConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_open_connections",
			Help: "Currently registered push connections by transport",
		},
		[]string{"transport"},
	)

	// CachedEvents tracks entries held in the replay cache
	CachedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_cached_events",
			Help: "Entries currently held in the replay cache",
		},
	)

	// CacheEvictionsTotal counts replay cache entries dropped by the retention sweep
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_cache_evictions_total",
			Help: "Replay cache entries evicted by the retention policy",
		},
	)

	// ConnectionTerminationsTotal counts terminal transitions by final state
	ConnectionTerminationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_connection_terminations_total",
			Help: "Connection terminal transitions by state",
		},
		[]string{"state"},
	)
)

// Delivery metrics
var (
	// NotificationsSentTotal counts persisted notifications by type
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_notifications_sent_total",
			Help: "Notifications persisted and fanned out, by type",
		},
		[]string{"type"},
	)

	// PushesTotal counts push attempts by result (delivered/failed)
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_pushes_total",
			Help: "Push attempts to live connections by result",
		},
		[]string{"result"},
	)

	// ReplayedEventsTotal counts cached events re-sent on reconnect
	ReplayedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_replayed_events_total",
			Help: "Cached events replayed to reconnecting clients",
		},
	)

	// FanOutDuration tracks time from persisted record to last push attempt
	FanOutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_fanout_duration_seconds",
			Help:    "Fan-out duration per send in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
	)

	// MailDroppedTotal counts notifications not emailed because the queue was full
	MailDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_mail_dropped_total",
			Help: "Notifications dropped from the mail queue",
		},
	)
)

const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)
