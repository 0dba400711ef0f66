package gateway

import (
	"errors"
	"fmt"
)

// FallbackMessage is shown when a failure carries no usable text.
const FallbackMessage = "An unknown error occurred while contacting the API."

// RequestError is returned for every failed call: transport failures,
// timeouts, non-2xx responses and undecodable bodies alike.
type RequestError struct {
	Operation  string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ErrorMessage returns the human-readable text to show for err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return FallbackMessage
}
