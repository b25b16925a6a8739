// Package responses defines the OpenAI Responses API protocol surface:
// request and response bodies, output items and streaming events.
package responses

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prismhub/prism/internal/pkg/xjson"
)

// Response statuses.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusIncomplete = "incomplete"
)

// IsTerminalStatus reports whether status admits no further transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusIncomplete:
		return true
	default:
		return false
	}
}

// Request is the body of POST /v1/responses.
// Reference: github.com/openai/openai-go/v2/responses.ResponseNewParams.
type Request struct {
	Model string `json:"model"`

	// Instructions is a system (or developer) message inserted into the
	// model's context.
	Instructions string `json:"instructions,omitempty"`

	// Input is a string prompt or an array of input items.
	Input Input `json:"input"`

	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// ParallelToolCalls is accepted and echoed but does not alter the
	// provider call.
	ParallelToolCalls *bool `json:"parallel_tool_calls,omitempty"`

	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxOutputTokens *int64   `json:"max_output_tokens,omitempty"`

	Text      *TextOptions `json:"text,omitempty"`
	Reasoning *Reasoning   `json:"reasoning,omitempty"`

	// PreviousResponseID chains this request onto a stored response.
	PreviousResponseID *string `json:"previous_response_id,omitempty"`

	Stream     *bool `json:"stream,omitempty"`
	Store      *bool `json:"store,omitempty"`
	Background *bool `json:"background,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	// Truncation is "auto" or "disabled"; stored and echoed only.
	Truncation *string `json:"truncation,omitempty"`

	User *string `json:"user,omitempty"`
}

// StoreEnabled reports the effective store flag; storage defaults to on.
func (r *Request) StoreEnabled() bool {
	return r.Store == nil || *r.Store
}

func (r *Request) IsStream() bool {
	return r.Stream != nil && *r.Stream
}

func (r *Request) IsBackground() bool {
	return r.Background != nil && *r.Background
}

// Input is either a string prompt or an ordered list of items.
type Input struct {
	Text  *string
	Items []Item
}

func (i *Input) UnmarshalJSON(data []byte) error {
	text, err := xjson.To[string](data)
	if err == nil {
		i.Text = &text

		return nil
	}

	items, err := xjson.To[[]Item](data)
	if err == nil {
		i.Items = items

		return nil
	}

	return errors.New("input must be a string or an array of items")
}

func (i Input) MarshalJSON() ([]byte, error) {
	if i.Text != nil {
		return json.Marshal(i.Text)
	}

	return json.Marshal(i.Items)
}

// Item types.
const (
	ItemTypeMessage            = "message"
	ItemTypeInputText          = "input_text"
	ItemTypeInputImage         = "input_image"
	ItemTypeOutputText         = "output_text"
	ItemTypeText               = "text"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
	ItemTypeReasoning          = "reasoning"
	ItemTypeItemReference      = "item_reference"
)

// Item is the unified structure for input and output items, following the
// openai-go pattern where both directions share one shape.
// Reference: github.com/openai/openai-go/v3/responses.ResponseOutputItemUnion.
type Item struct {
	// ID is generated by the server for output items.
	ID string `json:"id,omitempty"`

	Type string `json:"type,omitempty"`

	// Role is "system", "user", "assistant" or "developer" for messages.
	Role string `json:"role,omitempty"`

	// Content of a message item: a string, or nested content items.
	Content *Input `json:"content,omitempty"`

	// Status is "in_progress", "completed" or "incomplete".
	Status *string `json:"status,omitempty"`

	// ImageURL is a fetchable URL or a data: URI, for input_image items.
	ImageURL *string `json:"image_url,omitempty"`

	// Detail is "high", "low" or "auto", for input_image items.
	Detail *string `json:"detail,omitempty"`

	// Text for input_text/output_text items.
	Text *string `json:"text,omitempty"`

	// Function call fields.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// Output for function_call_output items.
	Output *Input `json:"output,omitempty"`

	// Reasoning fields. Summary carries the thinking text as summary_text
	// blocks; EncryptedContent is always null here but the key is emitted.
	Summary          []ReasoningSummary `json:"summary,omitempty"`
	EncryptedContent *string            `json:"encrypted_content,omitempty"`
}

// MarshalJSON omits summary for non-reasoning items, forces the summary and
// encrypted_content keys on reasoning items, and always carries arguments on
// function calls.
func (item Item) MarshalJSON() ([]byte, error) {
	type itemAlias Item

	if item.Type == ItemTypeReasoning {
		if item.Summary == nil {
			item.Summary = []ReasoningSummary{}
		}

		type reasoningItem struct {
			itemAlias
			Summary          []ReasoningSummary `json:"summary"`
			EncryptedContent *string            `json:"encrypted_content"`
		}

		return json.Marshal(reasoningItem{
			itemAlias:        itemAlias(item),
			Summary:          item.Summary,
			EncryptedContent: item.EncryptedContent,
		})
	}

	item.Summary = nil

	if item.Type == ItemTypeFunctionCall {
		type functionCallItem struct {
			itemAlias
			Arguments string `json:"arguments"`
		}

		return json.Marshal(functionCallItem{
			itemAlias: itemAlias(item),
			Arguments: item.Arguments,
		})
	}

	return json.Marshal(itemAlias(item))
}

// ContentText returns the plain text of a message item, joining string
// content and nested text items.
func (item Item) ContentText() string {
	if item.Content == nil {
		return ""
	}

	if item.Content.Text != nil {
		return *item.Content.Text
	}

	text := ""

	for _, ci := range item.Content.Items {
		switch ci.Type {
		case ItemTypeInputText, ItemTypeOutputText, ItemTypeText:
			if ci.Text != nil {
				text += *ci.Text
			}
		}
	}

	return text
}

// ReasoningSummary is one summary block of a reasoning item.
type ReasoningSummary struct {
	// Type is always "summary_text".
	Type string `json:"type"`
	Text string `json:"text"`
}

// Tool types.
const (
	ToolTypeFunction = "function"

	// Built-in tool types are recognised and rejected as not implemented.
	ToolTypeWebSearchPreview   = "web_search_preview"
	ToolTypeFileSearch         = "file_search"
	ToolTypeCodeInterpreter    = "code_interpreter"
	ToolTypeImageGeneration    = "image_generation"
	ToolTypeComputerUsePreview = "computer_use_preview"
)

// Tool is a tool definition; only function tools reach the provider.
type Tool struct {
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	Parameters json.RawMessage `json:"parameters,omitempty"`
	Strict     *bool           `json:"strict,omitempty"`
}

// ToolChoice is "auto", "required" or "none" as a bare string, or an object
// naming a specific function.
type ToolChoice struct {
	Mode string `json:"-"`

	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	mode, err := xjson.To[string](data)
	if err == nil {
		t.Mode = mode

		return nil
	}

	type toolChoiceAlias ToolChoice

	obj, err := xjson.To[toolChoiceAlias](data)
	if err == nil {
		*t = ToolChoice(obj)

		return nil
	}

	return fmt.Errorf("tool_choice must be a string or an object")
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Mode != "" {
		return json.Marshal(t.Mode)
	}

	type toolChoiceAlias ToolChoice

	return json.Marshal(toolChoiceAlias(t))
}

// TextOptions configures the output text format.
type TextOptions struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat is "text", "json_object" or "json_schema".
type TextFormat struct {
	Type   string          `json:"type,omitempty"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// Reasoning configures reasoning models.
type Reasoning struct {
	// Effort is "low", "medium" or "high".
	Effort string `json:"effort,omitempty"`
}

// Response is the response object returned by the API and reconstructed from
// storage.
type Response struct {
	// Object is always "response".
	Object string `json:"object"`
	ID     string `json:"id"`

	CreatedAt int64  `json:"created_at"`
	Model     string `json:"model"`

	Status string `json:"status"`

	Output []Item `json:"output"`

	Error             *Error             `json:"error"`
	IncompleteDetails *IncompleteDetails `json:"incomplete_details"`

	Instructions string `json:"instructions,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	ParallelToolCalls *bool `json:"parallel_tool_calls,omitempty"`

	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxOutputTokens *int64   `json:"max_output_tokens,omitempty"`

	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	Text      *TextOptions `json:"text,omitempty"`
	Reasoning *Reasoning   `json:"reasoning,omitempty"`

	PreviousResponseID *string `json:"previous_response_id,omitempty"`

	Background *bool   `json:"background,omitempty"`
	Truncation *string `json:"truncation,omitempty"`

	Usage *Usage `json:"usage,omitempty"`
}

// OutputText concatenates the text of all message output items, mirroring
// the SDK convenience accessor.
func (r *Response) OutputText() string {
	text := ""

	for _, item := range r.Output {
		if item.Type == ItemTypeMessage {
			text += item.ContentText()
		}
	}

	return text
}

// IncompleteDetails says why a response stopped short.
type IncompleteDetails struct {
	// Reason is "interrupted", "max_output_tokens" or "content_filter".
	Reason string `json:"reason"`
}

// Error is the error object embedded in failed responses.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Usage is the token accounting of one response.
type Usage struct {
	InputTokens         int64               `json:"input_tokens"`
	InputTokensDetails  InputTokensDetails  `json:"input_tokens_details"`
	OutputTokens        int64               `json:"output_tokens"`
	OutputTokensDetails OutputTokensDetails `json:"output_tokens_details"`
	TotalTokens         int64               `json:"total_tokens"`
}

type InputTokensDetails struct {
	CachedTokens int64 `json:"cached_tokens"`
}

type OutputTokensDetails struct {
	ReasoningTokens int64 `json:"reasoning_tokens"`
}
