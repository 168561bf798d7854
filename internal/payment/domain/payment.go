package domain

import (
	"strings"
	"time"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

// DefaultDeliveryFeeCents is charged on every order until shipping rates exist.
const DefaultDeliveryFeeCents int64 = 3000

type Method string

const (
	MethodCard         Method = "CARD"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodMobile       Method = "MOBILE"
)

func (m Method) Valid() bool {
	return m == MethodCard || m == MethodBankTransfer || m == MethodMobile
}

type Status string

const (
	StatusPaid   Status = "PAID"
	StatusFailed Status = "FAILED"
)

// Payment is the mock ledger entry for one payment attempt on an order.
type Payment struct {
	ID               string
	OrderID          string
	Method           Method
	OriginalCents    int64
	DiscountCents    int64
	DeliveryFeeCents int64
	FinalCents       int64
	Status           Status
	FailureReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPayment computes final = original - discount + fee.
func NewPayment(id, orderID string, method Method, originalCents, discountCents, feeCents int64, now time.Time) (Payment, error) {
	if !method.Valid() {
		return Payment{}, apperr.Wrap(apperr.ErrInvalidParameter, "unknown payment method %q", method)
	}
	if originalCents < 0 || discountCents < 0 || feeCents < 0 || discountCents > originalCents {
		return Payment{}, apperr.Wrap(apperr.ErrInvalidParameter, "invalid amounts")
	}
	now = now.UTC()
	return Payment{
		ID:               id,
		OrderID:          orderID,
		Method:           method,
		OriginalCents:    originalCents,
		DiscountCents:    discountCents,
		DeliveryFeeCents: feeCents,
		FinalCents:       originalCents - discountCents + feeCents,
		Status:           StatusPaid,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (p *Payment) Fail(reason string) {
	p.Status = StatusFailed
	p.FailureReason = strings.TrimSpace(reason)
	p.UpdatedAt = time.Now().UTC()
}
