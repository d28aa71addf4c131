// Package errors provides the error bundle used across the payments services.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")
	// ErrInternalServerError internal server error
	ErrInternalServerError = errors.New("server encountered an internal error and was unable to complete the request")
	// ErrBadRequest bad request error
	ErrBadRequest = errors.New("error bad request")
	// ErrInvalidRequest - malformed or inconsistent input, local, never retried
	ErrInvalidRequest = errors.New("invalid request")
	// ErrGatewayUnavailable - transient network/HTTP failure talking to the payment gateway
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrAuthenticationFailure - callback signature mismatch
	ErrAuthenticationFailure = errors.New("authentication failure")
	// ErrInvalidStateTransition - attempted illegal transaction status transition
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// ErrorBundle creates a new response error
type ErrorBundle struct {
	cause   error
	message string
	data    interface{}
}

// New creates a new response error
func New(cause error, message string, data interface{}) error {
	return &ErrorBundle{
		cause,
		message,
		data,
	}
}

// Data from error origin
func (e ErrorBundle) Data() interface{} {
	return e.data
}

// Cause returns the associated cause
func (e ErrorBundle) Cause() error {
	return e.cause
}

// Unwrap returns the associated cause
func (e ErrorBundle) Unwrap() error {
	return e.cause
}

// Error turns into an error
func (e ErrorBundle) Error() string {
	return e.message
}

// DataToString returns string representation of data
func (e ErrorBundle) DataToString() string {
	if e.data == nil {
		return "no error bundle data"
	}
	b, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Sprintf("error retrieving error bundle data %s", err.Error())
	}
	return string(b)
}

// Wrap wraps an error
func Wrap(cause error, message string) error {
	return &ErrorBundle{
		cause:   cause,
		message: message,
		data:    nil,
	}
}
