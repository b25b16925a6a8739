package llm

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for request translation. Wrap with fmt.Errorf("%w: ...")
// to add detail.
var (
	// ErrInvalidRequest marks requests that fail validation before reaching
	// the provider.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotImplemented marks protocol features no adapter supports.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedModel marks model ids with no registered backend.
	ErrUnsupportedModel = errors.New("unsupported model")
)

// ResponseError is a provider-reported failure with an HTTP status, kept
// structured so handlers can forward the upstream detail verbatim.
type ResponseError struct {
	StatusCode int         `json:"-"`
	Detail     ErrorDetail `json:"error"`
}

// ErrorDetail mirrors the common provider error envelope.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Detail.Message)
}

// NewResponseError builds a ResponseError with the given status and message.
func NewResponseError(statusCode int, message string) *ResponseError {
	return &ResponseError{
		StatusCode: statusCode,
		Detail: ErrorDetail{
			Type:    "api_error",
			Message: message,
		},
	}
}

// IsAbort reports whether err represents a caller-initiated cancellation
// rather than a provider failure.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}
