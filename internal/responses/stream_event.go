package responses

type StreamEventType string

const (
	StreamEventTypeError StreamEventType = "error"

	// Response lifecycle events. An aborted stream ends with the bare [DONE]
	// sentinel, so there is no incomplete lifecycle event.

	StreamEventTypeResponseInProgress StreamEventType = "response.in_progress"
	StreamEventTypeResponseCompleted  StreamEventType = "response.completed"
	StreamEventTypeResponseFailed     StreamEventType = "response.failed"

	// Item events.

	StreamEventTypeItemAdded StreamEventType = "response.output_item.added"
	StreamEventTypeItemDone  StreamEventType = "response.output_item.done"

	// Content part events.

	StreamEventTypeContentPartAdded StreamEventType = "response.content_part.added"
	StreamEventTypeContentPartDone  StreamEventType = "response.content_part.done"

	// Output text events.

	StreamEventTypeOutputTextDelta StreamEventType = "response.output_text.delta"
	StreamEventTypeOutputTextDone  StreamEventType = "response.output_text.done"
)

// StreamEvent is one SSE event of a streamed response. The SSE event name
// always equals Type.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	SequenceNumber int             `json:"sequence_number,omitempty"`

	// Response rides lifecycle events.
	Response *Response `json:"response,omitempty"`

	// OutputIndex and Item ride output_item events.
	OutputIndex *int  `json:"output_index,omitempty"`
	Item        *Item `json:"item,omitempty"`

	// ItemID and ContentIndex ride content_part and output_text events.
	ItemID       *string `json:"item_id,omitempty"`
	ContentIndex *int    `json:"content_index,omitempty"`

	// Part rides content_part events.
	Part *ContentPart `json:"part,omitempty"`

	// Delta rides output_text.delta; Text rides output_text.done.
	Delta *string `json:"delta,omitempty"`
	Text  *string `json:"text,omitempty"`

	// Error rides error events.
	Error *StreamError `json:"error,omitempty"`
}

// ContentPart is the part payload of content_part events.
type ContentPart struct {
	// Type is "output_text", "reasoning_text" or "refusal".
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// StreamError is the payload of an error stream event.
type StreamError struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Code    *string `json:"code"`
}
