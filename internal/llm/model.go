// Package llm defines the normalized contracts between the orchestrator and
// the provider adapters. Every backend translates to and from these types, so
// the orchestrator stays backend-agnostic.
package llm

import (
	"encoding/json"
)

// Request is the normalized generation request sent to an adapter.
type Request struct {
	// Model is the provider-side model name, already resolved from the
	// public model id.
	Model string `json:"model"`

	// System is the hoisted system prompt. Adapters place it wherever their
	// wire protocol expects system text.
	System string `json:"system,omitempty"`

	Messages []Message `json:"messages"`

	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`

	// ReasoningBudget is the thinking-token budget derived from the public
	// reasoning.effort field. Zero means thinking disabled.
	ReasoningBudget int64 `json:"reasoning_budget,omitempty"`

	// ResponseFormat requests structured output. Adapters that have no
	// native support implement it with a synthetic forced tool.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	Stream bool `json:"stream,omitempty"`
}

// Message is one normalized conversation turn.
type Message struct {
	// Role is one of "user" or "assistant". System text never appears here;
	// it is hoisted into Request.System.
	Role string `json:"role"`

	Content []ContentPart `json:"content"`
}

// LastPartType returns the type of the final content part, or "" for an
// empty message.
func (m *Message) LastPartType() string {
	if len(m.Content) == 0 {
		return ""
	}

	return m.Content[len(m.Content)-1].Type
}

// HasToolResult reports whether any content part is a tool result.
func (m *Message) HasToolResult() bool {
	for _, part := range m.Content {
		if part.Type == ContentTypeToolResult {
			return true
		}
	}

	return false
}

// Content part types.
const (
	ContentTypeText       = "text"
	ContentTypeImage      = "image"
	ContentTypeToolUse    = "tool_use"
	ContentTypeToolResult = "tool_result"
	ContentTypeThinking   = "thinking"
)

// ContentPart is a tagged variant of message content.
type ContentPart struct {
	Type string `json:"type"`

	// Text carries text and thinking parts.
	Text string `json:"text,omitempty"`

	Image      *Image      `json:"image,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

// Image is either a fetchable URL or inline base64 data.
type Image struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// ToolUse is an assistant request to invoke a tool.
type ToolUse struct {
	CallID string          `json:"call_id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// ToolResult is a client-supplied result for an earlier tool use.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
}

// Tool is a function-typed tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
	ToolChoiceFunction = "function"
)

// ToolChoice selects how the model may use tools. Name is set only when Mode
// is "function".
type ToolChoice struct {
	Mode string `json:"mode"`
	Name string `json:"name,omitempty"`
}

// Response format types.
const (
	ResponseFormatText       = "text"
	ResponseFormatJSONObject = "json_object"
	ResponseFormatJSONSchema = "json_schema"
)

// ResponseFormat constrains the model output shape.
type ResponseFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// StopReason is the normalized reason generation ended.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonStop      StopReason = "stop"
	StopReasonCancelled StopReason = "cancelled"
)

// Response is the final result of a non-streaming adapter call.
type Response struct {
	// Model is the provider-reported model, when available.
	Model string `json:"model,omitempty"`

	// Content is the assistant output in provider order: text, tool_use and
	// thinking parts.
	Content []ContentPart `json:"content"`

	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// Usage is the normalized token accounting for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`

	// CacheReadTokens counts prompt tokens served from the provider cache.
	CacheReadTokens int64 `json:"cache_read_tokens,omitempty"`
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}
