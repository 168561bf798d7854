// Package apperr holds the stable error taxonomy shared by the order, inventory
// and payment contexts. Every guard failure is one of the sentinels below so
// callers can match with errors.Is and adapters can map to a stable code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindForbidden   Kind = "forbidden"
	KindInvalid     Kind = "invalid"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

var (
	ErrProductNotFound = &Error{Code: "NOT_FOUND_PRODUCT", Kind: KindNotFound, Message: "product not found"}
	ErrOrderNotFound   = &Error{Code: "NOT_FOUND_ORDER", Kind: KindNotFound, Message: "order not found"}
	ErrRefundNotFound  = &Error{Code: "NOT_FOUND_REFUND", Kind: KindNotFound, Message: "refund request not found"}

	ErrInsufficientStock  = &Error{Code: "NOT_ENOUGH_STOCK", Kind: KindConflict, Message: "not enough stock"}
	ErrInvalidOrderStatus = &Error{Code: "INVALID_ORDER_STATUS", Kind: KindConflict, Message: "order status does not allow this action"}
	ErrCannotUpdateOrder  = &Error{Code: "CANNOT_UPDATE_ORDER", Kind: KindConflict, Message: "order can no longer be updated"}
	ErrAlreadyRefunded    = &Error{Code: "ALREADY_REFUNDED", Kind: KindConflict, Message: "order already refunded"}
	ErrDuplicateRequest   = &Error{Code: "DUPLICATE_REQUEST", Kind: KindConflict, Message: "a request for this order is already pending"}
	ErrInvalidRefundState = &Error{Code: "INVALID_REFUND_STATUS", Kind: KindConflict, Message: "refund request is not pending"}
	ErrAlreadyPaid        = &Error{Code: "ALREADY_PAID_ORDER", Kind: KindConflict, Message: "order is already paid"}

	ErrUnauthorized = &Error{Code: "NO_AUTHORITY", Kind: KindForbidden, Message: "requester is not allowed to perform this action"}

	ErrInvalidParameter = &Error{Code: "INVALID_PARAMETER", Kind: KindInvalid, Message: "invalid or missing parameter"}
	ErrReasonRequired   = &Error{Code: "REASON_CANNOT_BE_EMPTY", Kind: KindInvalid, Message: "reason cannot be empty"}

	ErrLockAcquisitionFailed = &Error{Code: "FAIL_ACQUIRED_LOCK", Kind: KindUnavailable, Message: "could not acquire lock"}

	ErrSystem = &Error{Code: "ERROR_SYSTEM", Kind: KindInternal, Message: "internal system error"}
)

// From resolves err to the taxonomy entry it wraps. Unknown errors collapse to
// ErrSystem so infrastructure detail never leaves the process.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrSystem
}

// Retryable reports whether the caller may retry with backoff. Only lock
// contention qualifies; every other failure is a business decision.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockAcquisitionFailed)
}

// Wrap attaches context to a sentinel while keeping it matchable.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
