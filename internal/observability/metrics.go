// Package observability exposes Prometheus instrumentation for the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the radar loop.
type Metrics struct {
	PollsTotal   prometheus.Counter
	PollFailures prometheus.Counter
	PollDuration prometheus.Histogram
	AlertActive  prometheus.Gauge

	// Session lifecycle metrics.
	SessionEvents *prometheus.CounterVec // labels: kind={start,update,partial_end,end,reminder}

	// Delivery metrics.
	NotificationsSent   prometheus.Counter
	NotificationErrors  prometheus.Counter
	NotificationLatency prometheus.Histogram

	// Free-text feed metrics.
	FeedItems   prometheus.Counter
	FeedDropped *prometheus.CounterVec // labels: reason={duplicate,unmatched,gated,invalid}
}

// New creates and registers all radar metrics with the default Prometheus registry.
func New() *Metrics {
	m := build()
	prometheus.MustRegister(
		m.PollsTotal,
		m.PollFailures,
		m.PollDuration,
		m.AlertActive,
		m.SessionEvents,
		m.NotificationsSent,
		m.NotificationErrors,
		m.NotificationLatency,
		m.FeedItems,
		m.FeedDropped,
	)
	return m
}

// NewForTesting creates Metrics without touching the default registry to avoid
// "already registered" panics when called from multiple tests.
func NewForTesting() *Metrics {
	return build()
}

func build() *Metrics {
	return &Metrics{
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "polls_total",
			Help:      "Total source poll attempts.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "poll_failures_total",
			Help:      "Total source poll attempts that failed.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "poll_duration_seconds",
			Help:      "Duration of one source fetch and state advance.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		AlertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "radar",
			Name:      "alert_active",
			Help:      "1 while an alert session is active, 0 otherwise.",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "session_events_total",
			Help:      "Session lifecycle events by kind.",
		}, []string{"kind"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "notifications_sent_total",
			Help:      "Total messages delivered to the notification channel.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "notification_errors_total",
			Help:      "Total deliveries that failed after all retries.",
		}),
		NotificationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "radar",
			Name:      "notification_latency_seconds",
			Help:      "End-to-end delivery duration including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FeedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "feed_items_total",
			Help:      "Total free-text feed items received.",
		}),
		FeedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "radar",
			Name:      "feed_dropped_total",
			Help:      "Free-text feed items dropped before delivery, by reason.",
		}, []string{"reason"}),
	}
}
