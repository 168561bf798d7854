package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

var allStatuses = []OrderStatus{
	StatusCreated, StatusAccepted, StatusPreparing, StatusShipping, StatusDelivered, StatusConfirmed,
	StatusCancelRequested, StatusCancelled, StatusRefundRequested, StatusRefundCompleted,
	StatusReturnRequested, StatusReturnCompleted,
}

func newTestOrder(t *testing.T, status OrderStatus) Order {
	t.Helper()
	r, err := NewReceiver("Kim", "Seoul 1", "010-0000-0000")
	require.NoError(t, err)
	o := NewOrder("o-1", "u-1", r, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	o.AddItem(LineItem{ID: "li-1", ProductID: "p-1", Quantity: 2, UnitPriceCents: 1000})
	o.Status = status
	return o
}

func TestNewOrderDefaults(t *testing.T) {
	o := newTestOrder(t, StatusCreated)

	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, o.CreatedAt.Add(DeliveryWindow), o.DeliveryDueAt)
	assert.Equal(t, "o-1", o.Items[0].OrderID)
}

func TestTotalIsDerivedFromFrozenPrices(t *testing.T) {
	o := newTestOrder(t, StatusCreated)
	o.AddItem(LineItem{ID: "li-2", ProductID: "p-2", Quantity: 3, UnitPriceCents: 250})

	assert.Equal(t, int64(2*1000+3*250), o.TotalCents())
}

func TestNewReceiverRequiresAllFields(t *testing.T) {
	_, err := NewReceiver("Kim", "", "010")
	assert.ErrorIs(t, err, apperr.ErrInvalidParameter)
}

// transitions lists every guarded transition with the statuses it accepts.
func TestTransitionGuards(t *testing.T) {
	cases := []struct {
		name    string
		allowed map[OrderStatus]OrderStatus
		apply   func(o *Order) error
	}{
		{
			name:    "accept payment",
			allowed: map[OrderStatus]OrderStatus{StatusCreated: StatusAccepted},
			apply:   func(o *Order) error { return o.AcceptPayment("pay-1") },
		},
		{
			name:    "payment failure",
			allowed: map[OrderStatus]OrderStatus{StatusCreated: StatusCancelled},
			apply:   func(o *Order) error { return o.CancelByPaymentFailure("card declined") },
		},
		{
			name: "cancel",
			allowed: map[OrderStatus]OrderStatus{
				StatusCreated: StatusCancelled, StatusAccepted: StatusCancelled, StatusPreparing: StatusCancelled,
			},
			apply: func(o *Order) error { return o.Cancel("changed my mind") },
		},
		{
			name: "request cancel",
			allowed: map[OrderStatus]OrderStatus{
				StatusCreated: StatusCancelRequested, StatusAccepted: StatusCancelRequested, StatusPreparing: StatusCancelRequested,
			},
			apply: func(o *Order) error { return o.RequestCancel("changed my mind") },
		},
		{
			name:    "approve cancel",
			allowed: map[OrderStatus]OrderStatus{StatusCancelRequested: StatusCancelled},
			apply:   func(o *Order) error { return o.ApproveCancel("ok") },
		},
		{
			name: "request refund",
			allowed: map[OrderStatus]OrderStatus{
				StatusShipping: StatusRefundRequested, StatusDelivered: StatusRefundRequested,
			},
			apply: func(o *Order) error { return o.RequestRefund(RefundTypeRefund, "broken") },
		},
		{
			name: "request return",
			allowed: map[OrderStatus]OrderStatus{
				StatusShipping: StatusReturnRequested, StatusDelivered: StatusReturnRequested,
			},
			apply: func(o *Order) error { return o.RequestRefund(RefundTypeReturn, "wrong size") },
		},
		{
			name:    "complete refund",
			allowed: map[OrderStatus]OrderStatus{StatusRefundRequested: StatusRefundCompleted},
			apply:   func(o *Order) error { return o.CompleteRefund(RefundTypeRefund) },
		},
		{
			name:    "complete return",
			allowed: map[OrderStatus]OrderStatus{StatusReturnRequested: StatusReturnCompleted},
			apply:   func(o *Order) error { return o.CompleteRefund(RefundTypeReturn) },
		},
		{
			name:    "confirm purchase",
			allowed: map[OrderStatus]OrderStatus{StatusDelivered: StatusConfirmed},
			apply:   func(o *Order) error { return o.ConfirmPurchase() },
		},
	}

	for _, tc := range cases {
		for _, from := range allStatuses {
			t.Run(tc.name+"/"+string(from), func(t *testing.T) {
				o := newTestOrder(t, from)
				before := o.Status
				err := tc.apply(&o)

				want, ok := tc.allowed[from]
				if !ok {
					require.ErrorIs(t, err, apperr.ErrInvalidOrderStatus)
					assert.Equal(t, before, o.Status)
					assert.Empty(t, o.Reasons)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, want, o.Status)
				assert.Equal(t, before, o.PreviousStatus)
			})
		}
	}
}

func TestRejectCancelRestoresPreviousStatus(t *testing.T) {
	o := newTestOrder(t, StatusPreparing)
	require.NoError(t, o.RequestCancel("late"))
	require.NoError(t, o.RejectCancel("already packed"))

	assert.Equal(t, StatusPreparing, o.Status)
	assert.Equal(t, []string{"late", "already packed"}, o.Reasons)
}

func TestRejectRefundRestoresPriorStatus(t *testing.T) {
	o := newTestOrder(t, StatusShipping)
	require.NoError(t, o.RequestRefund(RefundTypeReturn, "wrong colour"))

	require.ErrorIs(t, o.RejectRefund(RefundTypeRefund, "no"), apperr.ErrInvalidOrderStatus)
	require.NoError(t, o.RejectRefund(RefundTypeReturn, "used item"))
	assert.Equal(t, StatusShipping, o.Status)
}

func TestAdvanceFollowsFulfillmentTable(t *testing.T) {
	o := newTestOrder(t, StatusAccepted)
	for _, next := range []OrderStatus{StatusPreparing, StatusShipping, StatusDelivered, StatusConfirmed} {
		require.NoError(t, o.Advance(next))
		assert.Equal(t, next, o.Status)
	}

	created := newTestOrder(t, StatusCreated)
	assert.ErrorIs(t, created.Advance(StatusShipping), apperr.ErrInvalidOrderStatus)
	assert.ErrorIs(t, created.Advance(StatusCancelled), apperr.ErrInvalidOrderStatus)
	assert.Equal(t, StatusCreated, created.Status)
}

func TestChangeReceiver(t *testing.T) {
	next, err := NewReceiver("Lee", "Busan 2", "010-1111-2222")
	require.NoError(t, err)

	shipping := newTestOrder(t, StatusShipping)
	require.ErrorIs(t, shipping.ChangeReceiver(next), apperr.ErrCannotUpdateOrder)
	assert.Equal(t, "Kim", shipping.Receiver.Name)

	for _, s := range []OrderStatus{StatusCreated, StatusAccepted} {
		o := newTestOrder(t, s)
		require.NoError(t, o.ChangeReceiver(next))
		assert.Equal(t, next, o.Receiver)
	}
}

func TestPendingReleaseAfterLeavingStockHoldingStatus(t *testing.T) {
	o := newTestOrder(t, StatusCreated)
	assert.False(t, o.PendingRelease())

	require.NoError(t, o.Cancel("nope"))
	assert.True(t, o.PendingRelease())

	o.MarkStockReleased()
	assert.False(t, o.PendingRelease())
}
