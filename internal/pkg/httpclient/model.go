package httpclient

import (
	"fmt"
	"net/http"
)

// Request is a provider-agnostic HTTP request built by an adapter.
type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	Headers     http.Header `json:"headers"`
	ContentType string      `json:"content_type"`
	Body        []byte      `json:"body,omitempty"`

	// Auth is applied by the client right before sending, so request bodies
	// can be logged without credentials.
	Auth *AuthConfig `json:"auth,omitempty"`
}

// AuthConfig describes how the upstream call authenticates.
type AuthConfig struct {
	// Type is one of "bearer" or "api_key".
	Type string `json:"type"`

	APIKey string `json:"api_key,omitempty"`

	// HeaderKey is the header carrying the key when Type is "api_key".
	HeaderKey string `json:"header_key,omitempty"`
}

const (
	AuthTypeBearer = "bearer"
	AuthTypeAPIKey = "api_key"
)

// Response is a provider-agnostic HTTP response.
type Response struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body,omitempty"`
}

// StreamEvent is one decoded server-sent event from an upstream stream.
type StreamEvent struct {
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// Error carries a non-2xx upstream response.
type Error struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Body       []byte `json:"body,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, string(e.Body))
}
