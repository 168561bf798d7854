package domain

type OrderStatus string

const (
	StatusCreated         OrderStatus = "ORDER_CREATED"
	StatusAccepted        OrderStatus = "ORDER_ACCEPTED"
	StatusPreparing       OrderStatus = "ORDER_PREPARING"
	StatusShipping        OrderStatus = "ORDER_SHIPPING"
	StatusDelivered       OrderStatus = "ORDER_DELIVERED"
	StatusConfirmed       OrderStatus = "ORDER_CONFIRMED"
	StatusCancelRequested OrderStatus = "ORDER_CANCEL_REQUESTED"
	StatusCancelled       OrderStatus = "ORDER_CANCELLED"
	StatusRefundRequested OrderStatus = "ORDER_REFUND_REQUESTED"
	StatusRefundCompleted OrderStatus = "ORDER_REFUND_COMPLETED"
	StatusReturnRequested OrderStatus = "ORDER_RETURN_REQUESTED"
	StatusReturnCompleted OrderStatus = "ORDER_RETURN_COMPLETED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusAccepted, StatusPreparing, StatusShipping, StatusDelivered, StatusConfirmed,
		StatusCancelRequested, StatusCancelled, StatusRefundRequested, StatusRefundCompleted,
		StatusReturnRequested, StatusReturnCompleted:
		return true
	}
	return false
}

var (
	cancellable = []OrderStatus{StatusCreated, StatusAccepted, StatusPreparing}
	updatable   = []OrderStatus{StatusCreated, StatusAccepted}
	refundable  = []OrderStatus{StatusShipping, StatusDelivered}
)

// fulfillment lists the administrative edges. ChangeStatus accepts nothing else.
var fulfillment = map[OrderStatus]OrderStatus{
	StatusAccepted:  StatusPreparing,
	StatusPreparing: StatusShipping,
	StatusShipping:  StatusDelivered,
	StatusDelivered: StatusConfirmed,
}

func in(s OrderStatus, set []OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// HoldsStock reports whether an order in this status still owns its
// reservation.
func (s OrderStatus) HoldsStock() bool {
	switch s {
	case StatusCancelled, StatusRefundCompleted, StatusReturnCompleted:
		return false
	}
	return true
}
