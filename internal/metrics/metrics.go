package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the order tracker.
type Metrics struct {
	OrdersCreated        prometheus.Counter
	SequenceRetries      prometheus.Counter
	AnalyticsDuration    *prometheus.HistogramVec
	AnalyticsCacheHits   prometheus.Counter
	AnalyticsCacheMisses prometheus.Counter
	MembershipRejections *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "servicecrm",
			Name:      "orders_created_total",
			Help:      "Total number of orders created.",
		}),
		SequenceRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "servicecrm",
			Name:      "order_sequence_retries_total",
			Help:      "Order number allocations retried after a duplicate number was detected.",
		}),
		AnalyticsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "servicecrm",
			Name:      "analytics_duration_seconds",
			Help:      "Time spent loading and aggregating analytics.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"period"}),
		AnalyticsCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "servicecrm",
			Subsystem: "analytics",
			Name:      "cache_hits_total",
			Help:      "Analytics results served from cache.",
		}),
		AnalyticsCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "servicecrm",
			Subsystem: "analytics",
			Name:      "cache_misses_total",
			Help:      "Analytics results computed because the cache had no entry.",
		}),
		MembershipRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servicecrm",
			Name:      "membership_rejections_total",
			Help:      "Rejected membership and ownership operations by reason.",
		}, []string{"reason"}), // reason: admin_cannot_leave, cannot_remove_self, member_not_found, not_a_member, forbidden
	}
}
