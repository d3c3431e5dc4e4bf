package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Discard reasons for datagrams the daemon drops.
const (
	DiscardShort        = "short"
	DiscardUnrecognized = "unrecognized"
	DiscardNotForUs     = "not_addressed"
)

// Notification outcomes.
const (
	OutcomeYou      = "you"
	OutcomeEveryone = "everyone"
	OutcomeIgnored  = "ignored"
)

var (
	registerOnce sync.Once

	datagramsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boop",
			Subsystem: "daemon",
			Name:      "datagrams_received_total",
			Help:      "Datagrams read from the well-known port.",
		},
		[]string{"name"},
	)
	datagramsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boop",
			Subsystem: "daemon",
			Name:      "datagrams_discarded_total",
			Help:      "Datagrams dropped without reaction, by reason.",
		},
		[]string{"name", "reason"},
	)
	queriesAnswered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boop",
			Subsystem: "daemon",
			Name:      "queries_answered_total",
			Help:      "Name queries answered.",
		},
		[]string{"name"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boop",
			Subsystem: "daemon",
			Name:      "notifications_total",
			Help:      "Notifications received, by outcome.",
		},
		[]string{"name", "outcome"},
	)
	daemonFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boop",
			Subsystem: "daemon",
			Name:      "failures_total",
			Help:      "Reply and announce failures, by operation.",
		},
		[]string{"name", "op"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boop",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"name", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "boop",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"name", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			datagramsReceived,
			datagramsDiscarded,
			queriesAnswered,
			notifications,
			daemonFailures,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordDatagram(name string) {
	RegisterMetrics()
	datagramsReceived.WithLabelValues(name).Inc()
}

func RecordDiscard(name, reason string) {
	RegisterMetrics()
	datagramsDiscarded.WithLabelValues(name, reason).Inc()
}

func RecordQuery(name string) {
	RegisterMetrics()
	queriesAnswered.WithLabelValues(name).Inc()
}

func RecordNotification(name, outcome string) {
	RegisterMetrics()
	notifications.WithLabelValues(name, outcome).Inc()
}

func RecordFailure(name, op string) {
	RegisterMetrics()
	daemonFailures.WithLabelValues(name, op).Inc()
}

func RecordHTTPRequest(name, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(name, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(name, method, route, statusLabel).Observe(duration.Seconds())
}
