package shop

import (
	"errors"
	"fmt"
)

// Status classifies a shop failure so callers can react without string
// matching. Tool handlers render these into model-visible result text.
type Status string

const (
	StatusNotAuthenticated  Status = "not-authenticated"
	StatusNotFound          Status = "not-found"
	StatusInsufficientStock Status = "insufficient-stock"
	StatusConflict          Status = "conflict"
	StatusInternal          Status = "internal"
)

// Error is the typed failure returned by every shop operation.
type Error struct {
	Status  Status
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text shown to the model (and ultimately the user).
// It omits the wrapped cause, which may contain driver detail.
func (e *Error) UserMessage() string { return e.Message }

func notAuthenticated() *Error {
	return &Error{Status: StatusNotAuthenticated, Message: "User not authenticated"}
}

func notFound(what string) *Error {
	return &Error{Status: StatusNotFound, Message: what + " not found"}
}

func insufficientStock(available, requested int) *Error {
	return &Error{
		Status:  StatusInsufficientStock,
		Message: fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", available, requested),
	}
}

func conflict(msg string) *Error {
	return &Error{Status: StatusConflict, Message: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Status: StatusInternal, Message: msg, Err: err}
}

// StatusOf extracts the Status from err, or StatusInternal for foreign errors.
func StatusOf(err error) Status {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusInternal
}
