package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/stock-order-system/internal/apperr"
)

func TestNewRefundValidation(t *testing.T) {
	_, err := NewRefund("r-1", "o-1", "u-1", "EXCHANGE", "broken", time.Now())
	assert.ErrorIs(t, err, apperr.ErrInvalidParameter)

	_, err = NewRefund("r-1", "o-1", "u-1", RefundTypeRefund, "  ", time.Now())
	assert.ErrorIs(t, err, apperr.ErrReasonRequired)

	r, err := NewRefund("r-1", "o-1", "u-1", RefundTypeReturn, " too small ", time.Now())
	require.NoError(t, err)
	assert.Equal(t, RefundRequested, r.Status)
	assert.Equal(t, "too small", r.Reason)
	assert.True(t, r.Blocking())
}

func TestRefundLifecycle(t *testing.T) {
	r, err := NewRefund("r-1", "o-1", "u-1", RefundTypeRefund, "broken", time.Now())
	require.NoError(t, err)

	require.NoError(t, r.Approve())
	assert.ErrorIs(t, r.Approve(), apperr.ErrInvalidRefundState)
	assert.ErrorIs(t, r.Reject("late"), apperr.ErrInvalidRefundState)
	require.NoError(t, r.Complete())
	assert.Equal(t, RefundCompleted, r.Status)
	assert.True(t, r.Blocking())
	assert.ErrorIs(t, r.Complete(), apperr.ErrInvalidRefundState)
}

func TestRefundReject(t *testing.T) {
	r, err := NewRefund("r-1", "o-1", "u-1", RefundTypeRefund, "broken", time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, r.Reject(""), apperr.ErrReasonRequired)
	assert.Equal(t, RefundRequested, r.Status)

	require.NoError(t, r.Reject("photos show no damage"))
	assert.Equal(t, RefundRejected, r.Status)
	assert.Equal(t, "photos show no damage", r.DecisionReason)
	assert.False(t, r.Blocking())
}

func TestRefundTypeStatuses(t *testing.T) {
	assert.Equal(t, StatusRefundRequested, RefundTypeRefund.RequestedStatus())
	assert.Equal(t, StatusRefundCompleted, RefundTypeRefund.CompletedStatus())
	assert.Equal(t, StatusReturnRequested, RefundTypeReturn.RequestedStatus())
	assert.Equal(t, StatusReturnCompleted, RefundTypeReturn.CompletedStatus())
}
