package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeplehall_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeplehall_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// LikeMutations counts like and unlike operations that changed state.
	LikeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeplehall_like_mutations_total",
		Help: "Like state changes by item type and action",
	}, []string{"item_type", "action"})

	// KeyLockContention counts keyed-lock acquisitions by outcome (acquired, busy, canceled).
	KeyLockContention = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeplehall_keylock_acquisitions_total",
		Help: "Keyed lock acquisitions by outcome",
	}, []string{"outcome"})

	// KeyLockEntries is the number of keys currently tracked by the like lock table.
	KeyLockEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeplehall_keylock_entries",
		Help: "Number of live keyed-lock entries",
	})

	// OrdersPlaced counts orders created at checkout.
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeplehall_orders_placed_total",
		Help: "Orders created at checkout",
	})

	// OrderTransitions counts order status transitions by target status.
	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeplehall_order_transitions_total",
		Help: "Order status transitions by target status",
	}, []string{"status"})
)

// DatabaseQueryLatency records database query latency by operation and table.
var DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "meeplehall_database_query_latency_seconds",
	Help:    "Database query latency in seconds",
	Buckets: prometheus.DefBuckets,
}, []string{"operation", "table"})

const queryStartKey = "meeplehall:query_start"

// RegisterQueryMetrics installs gorm callbacks that observe DatabaseQueryLatency.
func RegisterQueryMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		op       string
		register func(name string, fn func(*gorm.DB)) error
		after    func(name string, fn func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		if err := s.register("metrics:before_"+s.op, before); err != nil {
			return err
		}
		if err := s.after("metrics:after_"+s.op, after(s.op)); err != nil {
			return err
		}
	}
	return nil
}
