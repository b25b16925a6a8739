package httpclient

import (
	"context"
	"errors"
	"io"

	"github.com/tmaxmax/go-sse"

	"github.com/prismhub/prism/internal/pkg/streams"
)

// NewSSEDecoder decodes a text/event-stream body into StreamEvents.
func NewSSEDecoder(ctx context.Context, rc io.ReadCloser) streams.Stream[*StreamEvent] {
	return &sseDecoder{
		ctx: ctx,
		sseStream: sse.NewStreamWithConfig(rc, &sse.StreamConfig{
			// Providers occasionally emit very large single events
			// (full tool arguments, base64 payloads).
			MaxEventSize: 16 * 1024 * 1024,
		}),
	}
}

var _ streams.Stream[*StreamEvent] = (*sseDecoder)(nil)

// sseDecoder is single-consumer; Next and Close must not race.
//
//nolint:containedctx // The decoder is bound to one request's lifetime.
type sseDecoder struct {
	ctx       context.Context
	sseStream *sse.Stream
	current   *StreamEvent
	err       error

	closed   bool
	closeErr error
}

func (s *sseDecoder) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		_ = s.Close()

		return false
	default:
	}

	event, err := s.sseStream.Recv()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			// Body closure during Recv surfaces as a read error; report
			// the context cancellation instead when that is the cause.
			if s.ctx.Err() != nil {
				err = s.ctx.Err()
			}

			s.err = err
		}

		_ = s.Close()

		return false
	}

	s.current = &StreamEvent{
		Type: event.Type,
		Data: []byte(event.Data),
	}

	return true
}

func (s *sseDecoder) Current() *StreamEvent {
	return s.current
}

func (s *sseDecoder) Err() error {
	return s.err
}

func (s *sseDecoder) Close() error {
	if s.closed {
		return s.closeErr
	}

	s.closed = true
	s.closeErr = s.sseStream.Close()

	return s.closeErr
}
