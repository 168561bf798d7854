package domain

const (
	EventPaymentProcessed = "PaymentProcessed"
	EventPaymentFailed    = "PaymentFailed"
)

// PaymentProcessed is reported by the payment gateway once funds are captured.
type PaymentProcessed struct {
	OrderID     string `json:"order_id"`
	Method      Method `json:"method"`
	AmountCents int64  `json:"amount_cents"`
}

type PaymentFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}
