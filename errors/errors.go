package errors

import (
	stdErrors "errors"
)

var (
	ErrNotFound     = stdErrors.New("not found")
	ErrInvalidInput = stdErrors.New("invalid input")
	ErrAuth         = stdErrors.New("unauthorized")
	ErrConflict     = stdErrors.New("conflict")
	ErrUpstream     = stdErrors.New("upstream failure")
	ErrInternal     = stdErrors.New("internal")
)

// ErrorResponse carries a message that is safe to show to the client.
// Code is one of the sentinels above, so errors.Is keeps working.
type ErrorResponse struct {
	Code    error
	Message string
}

func (e ErrorResponse) Error() string {
	return e.Message
}

func (e ErrorResponse) Unwrap() error {
	return e.Code
}

func New(code error, message string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// PublicMessage returns the message to send back to the client.
// Errors without an ErrorResponse in their chain fall back to fallback.
func PublicMessage(err error, fallback string) string {
	var resp ErrorResponse
	if stdErrors.As(err, &resp) {
		return resp.Message
	}
	return fallback
}
