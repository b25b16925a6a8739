package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/pkg/httpclient"
	"github.com/prismhub/prism/internal/pkg/streams"
)

var doneSentinel = []byte("[DONE]")

// toolState tracks the chunk-indexed tool call currently being streamed.
type toolState struct {
	index      int
	callID     string
	name       string
	args       strings.Builder
	structured bool
}

// eventStream projects chat completion chunks into normalized events.
type eventStream struct {
	upstream   streams.Stream[*httpclient.StreamEvent]
	structured bool

	tool         *toolState
	thinking     strings.Builder
	finishReason string
	usage        llm.Usage

	structuredFired bool

	pending  []*llm.Event
	current  *llm.Event
	err      error
	done     bool
	finished bool
}

var _ streams.Stream[*llm.Event] = (*eventStream)(nil)

func newEventStream(upstream streams.Stream[*httpclient.StreamEvent], structured bool) *eventStream {
	return &eventStream{upstream: upstream, structured: structured}
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

			if s.err == nil && !s.finished {
				// Upstream ended without a [DONE] line; finish anyway so the
				// consumer sees a terminal event.
				s.finish()

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
	data := bytes.TrimSpace(raw.Data)
	if len(data) == 0 {
		return nil
	}

	if bytes.Equal(data, doneSentinel) {
		s.finish()
		s.done = true

		return nil
	}

	var chunk ChatChunk

	if err := json.Unmarshal(data, &chunk); err != nil {
		return fmt.Errorf("failed to decode chat chunk: %w", err)
	}

	if chunk.Usage != nil {
		s.usage = convertUsage(chunk.Usage)
	}

	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		s.finishReason = choice.FinishReason
	}

	delta := choice.Delta
	if delta == nil {
		return nil
	}

	if delta.ReasoningContent != "" {
		s.thinking.WriteString(delta.ReasoningContent)
		s.pending = append(s.pending, &llm.Event{
			Type:  llm.EventThinkingDelta,
			Delta: delta.ReasoningContent,
		})
	}

	if delta.Content != "" {
		s.pending = append(s.pending, &llm.Event{
			Type:  llm.EventTextDelta,
			Delta: delta.Content,
		})
	}

	for _, call := range delta.ToolCalls {
		s.handleToolCall(&call)
	}

	return nil
}

func (s *eventStream) handleToolCall(call *ToolCall) {
	index := 0
	if call.Index != nil {
		index = *call.Index
	}

	// A fragment for a new index closes the previous call; providers stream
	// one call to completion before starting the next.
	if s.tool != nil && s.tool.index != index {
		s.closeTool()
	}

	if s.tool == nil {
		structured := s.structured && call.Function.Name == structuredOutputTool

		s.tool = &toolState{
			index:      index,
			callID:     call.ID,
			name:       call.Function.Name,
			structured: structured,
		}

		if structured {
			s.structuredFired = true
		} else {
			s.pending = append(s.pending, &llm.Event{
				Type:   llm.EventToolCallStart,
				CallID: call.ID,
				Name:   call.Function.Name,
			})
		}
	}

	// Some backends repeat id/name on later fragments; fill blanks only.
	if s.tool.callID == "" {
		s.tool.callID = call.ID
	}

	if s.tool.name == "" {
		s.tool.name = call.Function.Name
	}

	if call.Function.Arguments == "" {
		return
	}

	if s.tool.structured {
		s.pending = append(s.pending, &llm.Event{
			Type:  llm.EventTextDelta,
			Delta: call.Function.Arguments,
		})

		return
	}

	s.tool.args.WriteString(call.Function.Arguments)
	s.pending = append(s.pending, &llm.Event{
		Type:   llm.EventToolCallDelta,
		CallID: s.tool.callID,
		Delta:  call.Function.Arguments,
	})
}

func (s *eventStream) closeTool() {
	tool := s.tool
	s.tool = nil

	if tool == nil || tool.structured {
		return
	}

	s.pending = append(s.pending, &llm.Event{
		Type:      llm.EventToolCallDone,
		CallID:    tool.callID,
		Name:      tool.name,
		Arguments: tool.args.String(),
	})
}

func (s *eventStream) finish() {
	if s.finished {
		return
	}

	s.finished = true

	s.closeTool()

	if s.thinking.Len() > 0 {
		s.pending = append(s.pending, &llm.Event{
			Type: llm.EventThinkingDone,
			Text: s.thinking.String(),
		})
	}

	stopReason := mapFinishReason(s.finishReason)
	if s.structuredFired && stopReason == llm.StopReasonToolUse {
		stopReason = llm.StopReasonEndTurn
	}

	usage := s.usage

	s.pending = append(s.pending, &llm.Event{
		Type:       llm.EventMessageDone,
		StopReason: stopReason,
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
