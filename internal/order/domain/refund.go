package domain

import (
	"strings"
	"time"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

type RefundType string

const (
	RefundTypeRefund RefundType = "REFUND"
	RefundTypeReturn RefundType = "RETURN"
)

func (t RefundType) Valid() bool { return t == RefundTypeRefund || t == RefundTypeReturn }

func (t RefundType) RequestedStatus() OrderStatus {
	if t == RefundTypeReturn {
		return StatusReturnRequested
	}
	return StatusRefundRequested
}

func (t RefundType) CompletedStatus() OrderStatus {
	if t == RefundTypeReturn {
		return StatusReturnCompleted
	}
	return StatusRefundCompleted
}

type RefundStatus string

const (
	RefundRequested RefundStatus = "REQUESTED"
	RefundApproved  RefundStatus = "APPROVED"
	RefundRejected  RefundStatus = "REJECTED"
	RefundCompleted RefundStatus = "COMPLETED"
)

// Refund is a refund or return request. An order has at most one request that
// is pending or completed; rejected requests do not block a new one.
type Refund struct {
	ID             string
	OrderID        string
	RequesterID    string
	Type           RefundType
	Status         RefundStatus
	Reason         string
	DecisionReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewRefund(id, orderID, requesterID string, t RefundType, reason string, now time.Time) (Refund, error) {
	if !t.Valid() {
		return Refund{}, apperr.Wrap(apperr.ErrInvalidParameter, "unknown refund type %q", t)
	}
	if strings.TrimSpace(reason) == "" {
		return Refund{}, apperr.ErrReasonRequired
	}
	now = now.UTC()
	return Refund{
		ID:          id,
		OrderID:     orderID,
		RequesterID: requesterID,
		Type:        t,
		Status:      RefundRequested,
		Reason:      strings.TrimSpace(reason),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Blocking reports whether this request prevents another one on the order.
func (r Refund) Blocking() bool {
	return r.Status == RefundRequested || r.Status == RefundApproved || r.Status == RefundCompleted
}

func (r Refund) Pending() bool {
	return r.Status == RefundRequested || r.Status == RefundApproved
}

func (r *Refund) Approve() error {
	if r.Status != RefundRequested {
		return apperr.ErrInvalidRefundState
	}
	r.Status = RefundApproved
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Refund) Complete() error {
	if !r.Pending() {
		return apperr.ErrInvalidRefundState
	}
	r.Status = RefundCompleted
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Refund) Reject(reason string) error {
	if r.Status != RefundRequested {
		return apperr.ErrInvalidRefundState
	}
	if strings.TrimSpace(reason) == "" {
		return apperr.ErrReasonRequired
	}
	r.Status = RefundRejected
	r.DecisionReason = strings.TrimSpace(reason)
	r.UpdatedAt = time.Now().UTC()
	return nil
}
