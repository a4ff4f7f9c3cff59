// Package apperrors defines the typed failures returned by the order core.
//
// Every rejected operation surfaces an *Error whose Kind tells the caller why.
// Callers match on kind with errors.Is against the exported sentinels:
//
//	if errors.Is(err, apperrors.ErrInsufficientStock) { ... }
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindCouponInvalid     Kind = "coupon_invalid"
	KindInvalidTransition Kind = "invalid_transition"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindUnauthorized      Kind = "unauthorized"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// Error is the single error type of the core.
type Error struct {
	Kind    Kind
	Message string

	// Reason carries the coupon evaluator's failure reason.
	Reason string

	// Set for KindInsufficientStock.
	ProductID string
	Requested int
	Available int

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against a bare sentinel (a target without a message) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrCouponInvalid     = &Error{Kind: KindCouponInvalid}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrSignatureMismatch = &Error{Kind: KindSignatureMismatch}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrConflict          = &Error{Kind: KindConflict}

	ErrEmptyCart   = &Error{Kind: KindValidation, Message: "cart is empty"}
	ErrAlreadyPaid = &Error{Kind: KindConflict, Message: "order is already paid"}
)

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func InsufficientStock(productID, name string, requested, available int) *Error {
	label := productID
	if name != "" {
		label = name
	}
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)", label, requested, available),
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

func CouponInvalid(reason string) *Error {
	return &Error{Kind: KindCouponInvalid, Message: "coupon is not applicable: " + reason, Reason: reason}
}

func InvalidTransition(from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot change status from %s to %s", from, to)}
}

func SignatureMismatch() *Error {
	return &Error{Kind: KindSignatureMismatch, Message: "payment signature does not match"}
}

func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected storage or transport failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
