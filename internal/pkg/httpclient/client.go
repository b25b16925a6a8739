package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prismhub/prism/internal/pkg/streams"
)

// HttpClient executes adapter-built requests against upstream providers.
// It is safe for concurrent use.
type HttpClient struct {
	client *http.Client
}

func NewHttpClient() *HttpClient {
	return &HttpClient{
		client: &http.Client{
			// Generation requests can legitimately run for minutes; rely on
			// the caller's context for cancellation instead of a global cap.
			Timeout: 0,
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   16,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 2 * time.Minute,
			},
		},
	}
}

func (c *HttpClient) buildRequest(ctx context.Context, request *Request) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, request.Method, request.URL, bytes.NewReader(request.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	for key, values := range request.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if request.ContentType != "" {
		httpReq.Header.Set("Content-Type", request.ContentType)
	}

	if auth := request.Auth; auth != nil {
		switch auth.Type {
		case AuthTypeBearer:
			httpReq.Header.Set("Authorization", "Bearer "+auth.APIKey)
		case AuthTypeAPIKey:
			headerKey := auth.HeaderKey
			if headerKey == "" {
				headerKey = "X-API-Key"
			}

			httpReq.Header.Set(headerKey, auth.APIKey)
		}
	}

	return httpReq, nil
}

// Do executes a non-streaming request and reads the full body.
func (c *HttpClient) Do(ctx context.Context, request *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, &Error{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       body,
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

// DoStream executes a streaming request and returns the decoded SSE stream.
// The returned stream owns the response body; callers must Close it.
func (c *HttpClient) DoStream(ctx context.Context, request *Request) (streams.Stream[*StreamEvent], error) {
	httpReq, err := c.buildRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		body, _ := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()

		return nil, &Error{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       body,
		}
	}

	return NewSSEDecoder(ctx, httpResp.Body), nil
}
