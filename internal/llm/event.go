package llm

// EventType tags a streaming Event.
type EventType string

const (
	// EventTextDelta carries an incremental chunk of visible output text.
	EventTextDelta EventType = "text_delta"

	// EventToolCallStart announces a new tool invocation. CallID and Name
	// are final; arguments follow as deltas.
	EventToolCallStart EventType = "tool_call_start"

	// EventToolCallDelta carries an incremental chunk of tool call
	// arguments for the most recently started call.
	EventToolCallDelta EventType = "tool_call_delta"

	// EventToolCallDone marks a tool call's arguments complete. Arguments
	// holds the full accumulated string.
	EventToolCallDone EventType = "tool_call_done"

	// EventThinkingDelta carries an incremental chunk of reasoning text.
	EventThinkingDelta EventType = "thinking_delta"

	// EventThinkingDone marks the reasoning block complete. Text holds the
	// full accumulated reasoning.
	EventThinkingDone EventType = "thinking_done"

	// EventMessageDone is the terminal event of a successful stream. It
	// carries the stop reason and final usage.
	EventMessageDone EventType = "message_done"
)

// Event is one normalized streaming event emitted by an adapter. Adapters
// guarantee that tool call events for a single call arrive contiguously and
// that EventMessageDone is the last event of a successful stream.
type Event struct {
	Type EventType `json:"type"`

	// Delta carries the chunk for text_delta, tool_call_delta and
	// thinking_delta events.
	Delta string `json:"delta,omitempty"`

	// Text carries the full accumulated text for thinking_done.
	Text string `json:"text,omitempty"`

	// CallID and Name identify the tool call for tool_call_* events.
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name,omitempty"`

	// Arguments is the complete argument string for tool_call_done.
	Arguments string `json:"arguments,omitempty"`

	// StopReason and Usage are set on message_done.
	StopReason StopReason `json:"stop_reason,omitempty"`
	Usage      *Usage     `json:"usage,omitempty"`
}
