package domain

import (
	"strings"
	"time"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

const DeliveryWindow = 3 * 24 * time.Hour

// Receiver is replaced as a whole, never edited field by field.
type Receiver struct {
	Name    string
	Address string
	Mobile  string
}

func NewReceiver(name, address, mobile string) (Receiver, error) {
	r := Receiver{Name: strings.TrimSpace(name), Address: strings.TrimSpace(address), Mobile: strings.TrimSpace(mobile)}
	if r.Name == "" || r.Address == "" || r.Mobile == "" {
		return Receiver{}, apperr.Wrap(apperr.ErrInvalidParameter, "receiver name, address and mobile are required")
	}
	return r, nil
}

// LineItem references its order and product by id. UnitPriceCents is frozen
// at placement so later catalogue price changes never alter historical totals.
type LineItem struct {
	ID             string
	OrderID        string
	ProductID      string
	Quantity       int64
	UnitPriceCents int64
}

func (li LineItem) TotalCents() int64 { return li.UnitPriceCents * li.Quantity }

type Order struct {
	ID             string
	OwnerID        string
	Receiver       Receiver
	Status         OrderStatus
	PreviousStatus OrderStatus
	PaymentID      string
	// Reasons accumulates cancel and refund reasons in the order they arrived.
	Reasons []string
	// StockReleased is set once every line item was returned to stock after the
	// order left a stock-holding status.
	StockReleased bool
	Items         []LineItem
	CreatedAt     time.Time
	DeliveryDueAt time.Time
	UpdatedAt     time.Time
}

func NewOrder(id, ownerID string, receiver Receiver, now time.Time) Order {
	now = now.UTC()
	return Order{
		ID:            id,
		OwnerID:       ownerID,
		Receiver:      receiver,
		Status:        StatusCreated,
		CreatedAt:     now,
		DeliveryDueAt: now.Add(DeliveryWindow),
		UpdatedAt:     now,
	}
}

func (o *Order) AddItem(item LineItem) {
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
}

// TotalCents is derived on every read.
func (o Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalCents()
	}
	return total
}

func (o Order) IsOwnedBy(userID string) bool { return o.OwnerID == userID }

func (o Order) CanUpdate() bool { return in(o.Status, updatable) }

func (o Order) IsCancellable() bool { return in(o.Status, cancellable) }

func (o Order) IsRefundable() bool { return in(o.Status, refundable) }

// PendingRelease reports an order that gave up its reservation but whose stock
// has not been fully returned yet.
func (o Order) PendingRelease() bool {
	return !o.Status.HoldsStock() && !o.StockReleased && len(o.Items) > 0
}

func (o *Order) ChangeReceiver(r Receiver) error {
	if !o.CanUpdate() {
		return apperr.ErrCannotUpdateOrder
	}
	o.Receiver = r
	o.touch()
	return nil
}

func (o *Order) AcceptPayment(paymentID string) error {
	if o.Status != StatusCreated {
		return apperr.ErrInvalidOrderStatus
	}
	o.PaymentID = paymentID
	o.moveTo(StatusAccepted)
	return nil
}

func (o *Order) CancelByPaymentFailure(reason string) error {
	if o.Status != StatusCreated {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.moveTo(StatusCancelled)
	return nil
}

// Cancel is the owner's immediate cancellation; no approval step.
func (o *Order) Cancel(reason string) error {
	if !o.IsCancellable() {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.moveTo(StatusCancelled)
	return nil
}

func (o *Order) RequestCancel(reason string) error {
	if !o.IsCancellable() {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.moveTo(StatusCancelRequested)
	return nil
}

func (o *Order) ApproveCancel(reason string) error {
	if o.Status != StatusCancelRequested {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.moveTo(StatusCancelled)
	return nil
}

func (o *Order) RejectCancel(reason string) error {
	if o.Status != StatusCancelRequested {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.restore()
	return nil
}

func (o *Order) RequestRefund(t RefundType, reason string) error {
	if !t.Valid() {
		return apperr.ErrInvalidParameter
	}
	if !o.IsRefundable() {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.moveTo(t.RequestedStatus())
	return nil
}

func (o *Order) CompleteRefund(t RefundType) error {
	if !t.Valid() || o.Status != t.RequestedStatus() {
		return apperr.ErrInvalidOrderStatus
	}
	o.moveTo(t.CompletedStatus())
	return nil
}

func (o *Order) RejectRefund(t RefundType, reason string) error {
	if !t.Valid() || o.Status != t.RequestedStatus() {
		return apperr.ErrInvalidOrderStatus
	}
	o.addReason(reason)
	o.restore()
	return nil
}

// Advance moves the order one step along fulfillment. Only the edges listed
// in the fulfillment table are accepted.
func (o *Order) Advance(to OrderStatus) error {
	next, ok := fulfillment[o.Status]
	if !ok || next != to {
		return apperr.ErrInvalidOrderStatus
	}
	o.moveTo(to)
	return nil
}

func (o *Order) ConfirmPurchase() error {
	if o.Status != StatusDelivered {
		return apperr.ErrInvalidOrderStatus
	}
	o.moveTo(StatusConfirmed)
	return nil
}

func (o *Order) MarkStockReleased() {
	o.StockReleased = true
	o.touch()
}

func (o *Order) moveTo(s OrderStatus) {
	o.PreviousStatus = o.Status
	o.Status = s
	if !s.HoldsStock() {
		o.StockReleased = false
	}
	o.touch()
}

func (o *Order) restore() {
	prev := o.PreviousStatus
	o.PreviousStatus = o.Status
	o.Status = prev
	o.touch()
}

func (o *Order) addReason(reason string) {
	if r := strings.TrimSpace(reason); r != "" {
		o.Reasons = append(o.Reasons, r)
	}
}

func (o *Order) touch() { o.UpdatedAt = time.Now().UTC() }
