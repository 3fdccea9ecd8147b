package exception

import (
	"fmt"

	"github.com/yanun0323/errors"
)

// Transport errors
var (
	ErrRequestTimeout = errors.New("request timeout")
	ErrNetwork        = errors.New("network error")
	ErrNoBody         = errors.New("no response body available")
)

// APIError is returned when the backend answers with a non-success status.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Code is the machine readable error code from the response body, if any.
	Code string
	// Message describes the failure, including the response body text when present.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code: %s)", e.Message, e.Code)
	}
	return e.Message
}
