package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics is safe to use through a nil pointer so tests and tools can
// skip instrumentation.
type OrderMetrics struct {
	OrdersPlaced        prometheus.Counter
	ReservationsDenied  *prometheus.CounterVec
	LockFailures        *prometheus.CounterVec
	UnitsReleased       *prometheus.CounterVec
	StatusTransitions   *prometheus.CounterVec
	EventPublishFailure prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer, service string) *OrderMetrics {
	m := &OrderMetrics{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stockorder",
			Subsystem: service,
			Name:      "orders_placed_total",
			Help:      "Orders created after a successful reservation.",
		}),
		ReservationsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockorder",
			Subsystem: service,
			Name:      "reservations_denied_total",
			Help:      "Reservations rejected by the ledger.",
		}, []string{"reason"}),
		LockFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockorder",
			Subsystem: service,
			Name:      "lock_acquisition_failures_total",
			Help:      "Lock acquisitions that timed out.",
		}, []string{"scope"}),
		UnitsReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockorder",
			Subsystem: service,
			Name:      "stock_units_released_total",
			Help:      "Units returned to stock.",
		}, []string{"cause"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockorder",
			Subsystem: service,
			Name:      "order_status_transitions_total",
			Help:      "Order status transitions by target status.",
		}, []string{"to"}),
		EventPublishFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stockorder",
			Subsystem: service,
			Name:      "event_publish_failures_total",
			Help:      "Best-effort events that could not be published.",
		}),
	}
	reg.MustRegister(m.OrdersPlaced, m.ReservationsDenied, m.LockFailures, m.UnitsReleased, m.StatusTransitions, m.EventPublishFailure)
	return m
}

func (m *OrderMetrics) OrderPlaced() {
	if m != nil {
		m.OrdersPlaced.Inc()
	}
}

func (m *OrderMetrics) ReservationDenied(reason string) {
	if m != nil {
		m.ReservationsDenied.WithLabelValues(reason).Inc()
	}
}

func (m *OrderMetrics) LockFailed(scope string) {
	if m != nil {
		m.LockFailures.WithLabelValues(scope).Inc()
	}
}

func (m *OrderMetrics) Released(cause string, units int64) {
	if m != nil {
		m.UnitsReleased.WithLabelValues(cause).Add(float64(units))
	}
}

func (m *OrderMetrics) Transition(to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(to).Inc()
	}
}

func (m *OrderMetrics) PublishFailed() {
	if m != nil {
		m.EventPublishFailure.Inc()
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
