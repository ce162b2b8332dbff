package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrInternalServer  = errors.New("internal server error")
	ErrVersionConflict = errors.New("version conflict")

	// Business errors
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrBiddingClosed     = errors.New("bidding window closed")
	ErrUnknownDriver     = errors.New("driver has no live bid")
	ErrTooManyStops      = errors.New("stop limit reached")
	ErrRepricingBlocked  = errors.New("repricing requires approval")
	ErrActiveRideExists  = errors.New("customer already has an active ride request")
)

// APIError represents a structured API error. Details carries optional
// machine-readable context (e.g. the computed stop delta behind a
// repricing hold).
type APIError struct {
	Code       string      `json:"error"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common API errors
func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

func ValidationFailed(message string) *APIError {
	return NewAPIError("validation_error", message, http.StatusUnprocessableEntity)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

func InvalidTransition(from, to string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusConflict)
}

// NotModifiable rejects route or pricing changes on a finished ride.
func NotModifiable(status string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("ride request in status %s can no longer be modified", status), http.StatusConflict)
}

func BiddingClosed() *APIError {
	return NewAPIError("bidding_closed", "the bidding window for this request is closed", http.StatusGone)
}

func UnknownDriver(driverID string) *APIError {
	return NewAPIError("unknown_driver", fmt.Sprintf("driver %s has no live bid on this request", driverID), http.StatusNotFound)
}

func TooManyStops(max int) *APIError {
	return NewAPIError("too_many_stops", fmt.Sprintf("a ride request may have at most %d stops", max), http.StatusConflict)
}

// RepricingBlocked signals that a stop insertion needs explicit approval
// or a fresh bidding round. The computed delta rides along so the client
// can render the approval prompt.
func RepricingBlocked(delta interface{}, requiresNewBid bool) *APIError {
	msg := "stop insertion requires rider and driver approval"
	if requiresNewBid {
		msg = "stop insertion is too disruptive; request a new bid for the remainder of the trip"
	}
	err := NewAPIError("repricing_blocked", msg, http.StatusConflict)
	err.Details = delta
	return err
}

func ActiveRideExists() *APIError {
	return NewAPIError("active_ride_exists", "you already have an active ride request", http.StatusConflict)
}

func ConcurrentModification() *APIError {
	return NewAPIError("conflict", "ride request was modified concurrently, please retry", http.StatusConflict)
}
