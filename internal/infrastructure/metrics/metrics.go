package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors for the realtime subsystem. Constructed
// once at startup and injected; never a package-level singleton.
type Metrics struct {
	Connections         *prometheus.GaugeVec
	EventsPublished     *prometheus.CounterVec
	EventsDelivered     prometheus.Counter
	EventsDropped       prometheus.Counter
	RateLimitRejections prometheus.Counter
	BackplaneErrors     prometheus.Counter
	SnapshotFailures    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tabsync_connections",
			Help: "Currently connected clients by tenant and role.",
		}, []string{"tenant", "role"}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabsync_events_published_total",
			Help: "Domain events published, by event type.",
		}, []string{"type"}),

		EventsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabsync_events_delivered_total",
			Help: "Envelopes delivered to local connections.",
		}),

		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabsync_events_dropped_total",
			Help: "Envelopes dropped due to slow consumers or stale connections.",
		}),

		RateLimitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabsync_rate_limit_rejections_total",
			Help: "Client-originated events rejected by the rate limiter.",
		}),

		BackplaneErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabsync_backplane_errors_total",
			Help: "Failed backplane publishes (delivery degraded to local only).",
		}),

		SnapshotFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabsync_snapshot_failures_total",
			Help: "State snapshots that failed and were surfaced as sync:error.",
		}),
	}
}

// RoleLabel flattens identity into the connections gauge role label.
func RoleLabel(isStaff bool, role string) string {
	if !isStaff {
		return "customer"
	}
	return role
}
