package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/pkg/httpclient"
	"github.com/prismhub/prism/internal/pkg/streams"
)

// blockState tracks one open content block by stream index.
type blockState struct {
	kind   string
	callID string
	name   string

	args     strings.Builder
	thinking strings.Builder
}

// eventStream projects Messages SSE events into normalized events. One wire
// event can yield several normalized events, so produced events queue in
// pending until consumed.
type eventStream struct {
	upstream   streams.Stream[*httpclient.StreamEvent]
	structured bool

	blocks     map[int]*blockState
	stopReason llm.StopReason
	usage      llm.Usage

	// structuredFired is set once the synthetic structured-output tool has
	// produced text, so the tool_use stop reason reads as end_turn.
	structuredFired bool

	pending []*llm.Event
	current *llm.Event
	err     error
	done    bool
}

var _ streams.Stream[*llm.Event] = (*eventStream)(nil)

func newEventStream(upstream streams.Stream[*httpclient.StreamEvent], structured bool) *eventStream {
	return &eventStream{
		upstream:   upstream,
		structured: structured,
		blocks:     make(map[int]*blockState),
		stopReason: llm.StopReasonEndTurn,
	}
}

func (s *eventStream) Next() bool {
	for {
		if len(s.pending) > 0 {
			s.current = s.pending[0]
			s.pending = s.pending[1:]

			return true
		}

		if s.done || s.err != nil {
			return false
		}

		if !s.upstream.Next() {
			s.err = s.upstream.Err()
			s.done = true

			if s.err == nil {
				// Upstream ended without message_stop. Treat as complete so
				// callers still see a terminal event.
				s.emitMessageDone()

				continue
			}

			return false
		}

		if err := s.handle(s.upstream.Current()); err != nil {
			s.err = err
			s.done = true

			return false
		}
	}
}

func (s *eventStream) handle(raw *httpclient.StreamEvent) error {
	var event StreamEvent

	if err := json.Unmarshal(raw.Data, &event); err != nil {
		return fmt.Errorf("failed to decode stream event %q: %w", raw.Type, err)
	}

	switch event.Type {
	case EventMessageStart:
		if event.Message != nil {
			s.usage.InputTokens = event.Message.Usage.InputTokens
			s.usage.CacheReadTokens = event.Message.Usage.CacheReadInputTokens
		}
	case EventContentBlockStart:
		s.handleBlockStart(&event)
	case EventContentBlockDelta:
		s.handleBlockDelta(&event)
	case EventContentBlockStop:
		s.handleBlockStop(event.Index)
	case EventMessageDelta:
		if event.Delta != nil && event.Delta.StopReason != "" {
			s.stopReason = mapStopReason(event.Delta.StopReason)
			if s.structuredFired && s.stopReason == llm.StopReasonToolUse {
				s.stopReason = llm.StopReasonEndTurn
			}
		}

		if event.Usage != nil {
			s.usage.OutputTokens = event.Usage.OutputTokens
		}
	case EventMessageStop:
		s.emitMessageDone()
		s.done = true
	case EventError:
		detail := llm.ErrorDetail{Type: "api_error", Message: "stream error"}
		if event.Error != nil {
			detail.Message = event.Error.Message
			if event.Error.Type != "" {
				detail.Type = event.Error.Type
			}
		}

		return &llm.ResponseError{StatusCode: http.StatusInternalServerError, Detail: detail}
	case EventPing:
		// Keepalive, nothing to project.
	}

	return nil
}

func (s *eventStream) handleBlockStart(event *StreamEvent) {
	block := event.ContentBlock
	if block == nil {
		return
	}

	state := &blockState{kind: block.Type}
	s.blocks[event.Index] = state

	if block.Type != BlockTypeToolUse {
		return
	}

	state.callID = block.ID
	state.name = block.Name

	if s.structured && block.Name == structuredOutputTool {
		state.kind = "structured_text"
		s.structuredFired = true

		return
	}

	s.pending = append(s.pending, &llm.Event{
		Type:   llm.EventToolCallStart,
		CallID: block.ID,
		Name:   block.Name,
	})
}

func (s *eventStream) handleBlockDelta(event *StreamEvent) {
	state := s.blocks[event.Index]
	if state == nil || event.Delta == nil {
		return
	}

	switch event.Delta.Type {
	case "text_delta":
		if event.Delta.Text != "" {
			s.pending = append(s.pending, &llm.Event{
				Type:  llm.EventTextDelta,
				Delta: event.Delta.Text,
			})
		}
	case "input_json_delta":
		if state.kind == "structured_text" {
			if event.Delta.PartialJSON != "" {
				s.pending = append(s.pending, &llm.Event{
					Type:  llm.EventTextDelta,
					Delta: event.Delta.PartialJSON,
				})
			}

			return
		}

		state.args.WriteString(event.Delta.PartialJSON)

		s.pending = append(s.pending, &llm.Event{
			Type:   llm.EventToolCallDelta,
			CallID: state.callID,
			Delta:  event.Delta.PartialJSON,
		})
	case "thinking_delta":
		state.thinking.WriteString(event.Delta.Thinking)

		s.pending = append(s.pending, &llm.Event{
			Type:  llm.EventThinkingDelta,
			Delta: event.Delta.Thinking,
		})
	case "signature_delta":
		// Signatures only matter for replay, which is not supported.
	}
}

func (s *eventStream) handleBlockStop(index int) {
	state := s.blocks[index]
	if state == nil {
		return
	}

	delete(s.blocks, index)

	switch state.kind {
	case BlockTypeToolUse:
		s.pending = append(s.pending, &llm.Event{
			Type:      llm.EventToolCallDone,
			CallID:    state.callID,
			Name:      state.name,
			Arguments: state.args.String(),
		})
	case BlockTypeThinking:
		s.pending = append(s.pending, &llm.Event{
			Type: llm.EventThinkingDone,
			Text: state.thinking.String(),
		})
	}
}

func (s *eventStream) emitMessageDone() {
	usage := s.usage

	s.pending = append(s.pending, &llm.Event{
		Type:       llm.EventMessageDone,
		StopReason: s.stopReason,
		Usage:      &usage,
	})
}

func (s *eventStream) Current() *llm.Event {
	return s.current
}

func (s *eventStream) Err() error {
	return s.err
}

func (s *eventStream) Close() error {
	return s.upstream.Close()
}
