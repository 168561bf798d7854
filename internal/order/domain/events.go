package domain

import "time"

const (
	EventOrderPlaced       = "OrderPlaced"
	EventPaymentAccepted   = "OrderPaymentAccepted"
	EventOrderCancelled    = "OrderCancelled"
	EventCancelRequested   = "OrderCancelRequested"
	EventCancelRejected    = "OrderCancelRejected"
	EventRefundRequested   = "OrderRefundRequested"
	EventRefundCompleted   = "OrderRefundCompleted"
	EventRefundRejected    = "OrderRefundRejected"
	EventStatusAdvanced    = "OrderStatusAdvanced"
	EventReceiverChanged   = "OrderReceiverChanged"
	EventPurchaseConfirmed = "OrderPurchaseConfirmed"
)

// Event is the outbound notification of a committed order change.
type Event struct {
	Type       string      `json:"type"`
	OrderID    string      `json:"order_id"`
	OwnerID    string      `json:"owner_id"`
	Status     OrderStatus `json:"status"`
	TotalCents int64       `json:"total_cents"`
	Message    string      `json:"message,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func NewEvent(eventType string, o Order, message string) Event {
	return Event{
		Type:       eventType,
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		Status:     o.Status,
		TotalCents: o.TotalCents(),
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}
