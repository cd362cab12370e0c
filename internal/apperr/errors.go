// Package apperr is the error taxonomy shared by the workflows and the HTTP layer.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindFutureTimestamp   Kind = "future_timestamp"
	KindInsufficientStock Kind = "insufficient_stock"
	KindIntegrity         Kind = "integrity_violation"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Business error codes as seen by clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidFormat     = "INVALID_FORMAT"
	CodeNotFound          = "NOT_FOUND"
	CodeFutureTimestamp   = "FUTURE_TIMESTAMP"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeIntegrity         = "INTEGRITY_VIOLATION"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternal          = "INTERNAL_ERROR"
)

// StockShortage describes one product that cannot cover the requested quantity.
type StockShortage struct {
	ProductID int64 `json:"product_id"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

// Error is a classified failure. Message is safe to show to clients; Cause is for server logs only.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Field   string
	Details any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind so callers can write errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidFormat     = &Error{Kind: KindValidation, Code: CodeInvalidFormat}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrFutureTimestamp   = &Error{Kind: KindFutureTimestamp}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrIntegrity         = &Error{Kind: KindIntegrity}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
)

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Status: http.StatusBadRequest, Field: field, Message: message}
}

func InvalidFormat(field string, cause error) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidFormat,
		Status:  http.StatusBadRequest,
		Field:   field,
		Message: fmt.Sprintf("%s has an invalid format", field),
		Cause:   cause,
	}
}

func NotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
	}
}

func FutureTimestamp(field string) *Error {
	return &Error{
		Kind:    KindFutureTimestamp,
		Code:    CodeFutureTimestamp,
		Status:  http.StatusBadRequest,
		Field:   field,
		Message: "sighting timestamp cannot be in the future",
	}
}

func InsufficientStock(shortages []StockShortage) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Code:    CodeInsufficientStock,
		Status:  http.StatusBadRequest,
		Message: "insufficient stock for one or more products",
		Details: shortages,
	}
}

// Integrity keeps the store's message out of the client response.
func Integrity(cause error) *Error {
	return &Error{
		Kind:    KindIntegrity,
		Code:    CodeIntegrity,
		Status:  http.StatusBadRequest,
		Message: "the request conflicts with existing data",
		Cause:   errors.WithStack(cause),
	}
}

func StoreUnavailable(cause error) *Error {
	return &Error{
		Kind:    KindStoreUnavailable,
		Code:    CodeStoreUnavailable,
		Status:  http.StatusInternalServerError,
		Message: "the data store is unavailable",
		Cause:   errors.WithStack(cause),
	}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Status: http.StatusForbidden, Message: message}
}

func Internal(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Cause:   errors.WithStack(cause),
	}
}

// From classifies any error. Unclassified errors become Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
