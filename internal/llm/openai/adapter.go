// Package openai implements the provider adapter for OpenAI-compatible chat
// completions backends.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/pkg/httpclient"
	"github.com/prismhub/prism/internal/pkg/streams"
	"github.com/prismhub/prism/internal/pkg/xjson"
)

// structuredOutputTool implements json_schema output on backends without
// reliable native support: the schema rides a forced tool and the tool call
// arguments are read back as the answer text.
const structuredOutputTool = "__json_response__"

// Config holds the connection settings for one OpenAI-compatible backend.
type Config struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string `json:"base_url"`

	APIKey string `json:"api_key"`
}

// Adapter translates normalized requests to the chat completions protocol.
type Adapter struct {
	config *Config
	client *httpclient.HttpClient
}

var _ llm.Adapter = (*Adapter)(nil)

func NewAdapter(config *Config, client *httpclient.HttpClient) *Adapter {
	return &Adapter{config: config, client: client}
}

func (a *Adapter) Name() string {
	return "openai"
}

func (a *Adapter) buildRequest(request *llm.Request, stream bool) (*httpclient.Request, error) {
	if request.Model == "" {
		return nil, fmt.Errorf("%w: model is required", llm.ErrInvalidRequest)
	}

	if len(request.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages are required", llm.ErrInvalidRequest)
	}

	wireReq, err := convertRequest(request, stream)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	baseURL := strings.TrimSuffix(a.config.BaseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	return &httpclient.Request{
		Method:      http.MethodPost,
		URL:         baseURL + "/chat/completions",
		ContentType: "application/json",
		Body:        body,
		Auth: &httpclient.AuthConfig{
			Type:   httpclient.AuthTypeBearer,
			APIKey: a.config.APIKey,
		},
	}, nil
}

// Chat implements the blocking path.
func (a *Adapter) Chat(ctx context.Context, request *llm.Request) (*llm.Response, error) {
	httpReq, err := a.buildRequest(request, false)
	if err != nil {
		return nil, err
	}

	httpResp, err := a.client.Do(ctx, httpReq)
	if err != nil {
		return nil, transformError(err)
	}

	var chatResp ChatResponse

	if err := json.Unmarshal(httpResp.Body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, llm.NewResponseError(http.StatusBadGateway, "chat response has no choices")
	}

	return convertResponse(&chatResp, usesStructuredTool(request)), nil
}

// Stream implements the streaming path.
func (a *Adapter) Stream(ctx context.Context, request *llm.Request) (streams.Stream[*llm.Event], error) {
	httpReq, err := a.buildRequest(request, true)
	if err != nil {
		return nil, err
	}

	upstream, err := a.client.DoStream(ctx, httpReq)
	if err != nil {
		return nil, transformError(err)
	}

	return newEventStream(upstream, usesStructuredTool(request)), nil
}

func usesStructuredTool(request *llm.Request) bool {
	return request.ResponseFormat != nil && request.ResponseFormat.Type == llm.ResponseFormatJSONSchema
}

func convertRequest(request *llm.Request, stream bool) (*ChatRequest, error) {
	wireReq := &ChatRequest{
		Model:       request.Model,
		Temperature: request.Temperature,
		TopP:        request.TopP,
		MaxTokens:   request.MaxTokens,
	}

	if stream {
		wireReq.Stream = lo.ToPtr(true)
		wireReq.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	if request.System != "" {
		wireReq.Messages = append(wireReq.Messages, ChatMessage{
			Role:    "system",
			Content: request.System,
		})
	}

	for _, message := range request.Messages {
		converted, err := convertMessage(&message)
		if err != nil {
			return nil, err
		}

		wireReq.Messages = append(wireReq.Messages, converted...)
	}

	for _, tool := range request.Tools {
		wireReq.Tools = append(wireReq.Tools, ChatTool{
			Type: "function",
			Function: ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	if choice := request.ToolChoice; choice != nil {
		wireReq.ToolChoice = convertToolChoice(choice)
	}

	if format := request.ResponseFormat; format != nil {
		switch format.Type {
		case llm.ResponseFormatJSONObject:
			wireReq.ResponseFormat = &ResponseFormat{Type: "json_object"}
		case llm.ResponseFormatJSONSchema:
			schema := format.Schema
			if len(schema) == 0 {
				schema = json.RawMessage(`{"type":"object"}`)
			}

			wireReq.Tools = append(wireReq.Tools, ChatTool{
				Type: "function",
				Function: ToolFunction{
					Name:        structuredOutputTool,
					Description: "Record the final answer as a JSON object matching the schema.",
					Parameters:  schema,
				},
			})
			wireReq.ToolChoice = NamedToolChoice{
				Type:     "function",
				Function: NamedToolTarget{Name: structuredOutputTool},
			}
		}
	}

	return wireReq, nil
}

// convertMessage maps one normalized message onto chat messages. A single
// message can expand to several wire messages because tool results are
// standalone role=tool turns.
func convertMessage(message *llm.Message) ([]ChatMessage, error) {
	var (
		result    []ChatMessage
		parts     []ContentPart
		toolCalls []ToolCall
	)

	flushParts := func() *ChatMessage {
		chatMsg := ChatMessage{Role: message.Role}

		switch {
		case len(parts) == 1 && parts[0].Type == "text":
			chatMsg.Content = parts[0].Text
		case len(parts) > 0:
			chatMsg.Content = parts
		}

		parts = nil

		return &chatMsg
	}

	for _, part := range message.Content {
		switch part.Type {
		case llm.ContentTypeText:
			parts = append(parts, ContentPart{Type: "text", Text: part.Text})
		case llm.ContentTypeThinking:
			// Replayed thinking has no chat-completions slot; fold into text.
			if part.Text != "" {
				parts = append(parts, ContentPart{Type: "text", Text: part.Text})
			}
		case llm.ContentTypeImage:
			url := imageURL(part.Image)
			if url != "" {
				parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}})
			}
		case llm.ContentTypeToolUse:
			arguments := string(part.ToolUse.Input)
			if arguments == "" {
				arguments = "{}"
			}

			toolCalls = append(toolCalls, ToolCall{
				ID:   part.ToolUse.CallID,
				Type: "function",
				Function: ToolCallFunction{
					Name:      part.ToolUse.Name,
					Arguments: arguments,
				},
			})
		case llm.ContentTypeToolResult:
			result = append(result, ChatMessage{
				Role:       "tool",
				ToolCallID: part.ToolResult.CallID,
				Content:    part.ToolResult.Content,
			})
		default:
			return nil, fmt.Errorf("%w: unsupported content part %q", llm.ErrInvalidRequest, part.Type)
		}
	}

	// Tool results precede any text so role=tool turns stay adjacent to the
	// assistant tool_calls turn that caused them.
	if len(parts) > 0 || len(toolCalls) > 0 {
		chatMsg := flushParts()
		chatMsg.ToolCalls = toolCalls

		result = append(result, *chatMsg)
	}

	return result, nil
}

func imageURL(image *llm.Image) string {
	if image == nil {
		return ""
	}

	if image.URL != "" {
		return image.URL
	}

	if image.Base64 != "" {
		mediaType := image.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}

		return "data:" + mediaType + ";base64," + image.Base64
	}

	return ""
}

func convertToolChoice(choice *llm.ToolChoice) any {
	switch choice.Mode {
	case llm.ToolChoiceFunction:
		return NamedToolChoice{
			Type:     "function",
			Function: NamedToolTarget{Name: choice.Name},
		}
	case llm.ToolChoiceRequired, llm.ToolChoiceNone:
		return choice.Mode
	default:
		return llm.ToolChoiceAuto
	}
}

func convertResponse(chatResp *ChatResponse, structured bool) *llm.Response {
	choice := chatResp.Choices[0]

	response := &llm.Response{
		Model:      chatResp.Model,
		StopReason: mapFinishReason(choice.FinishReason),
	}

	if chatResp.Usage != nil {
		response.Usage = convertUsage(chatResp.Usage)
	}

	if message := choice.Message; message != nil {
		if message.ReasoningContent != "" {
			response.Content = append(response.Content, llm.ContentPart{
				Type: llm.ContentTypeThinking,
				Text: message.ReasoningContent,
			})
		}

		if message.Content != "" {
			response.Content = append(response.Content, llm.TextPart(message.Content))
		}

		for _, call := range message.ToolCalls {
			if structured && call.Function.Name == structuredOutputTool {
				response.Content = append(response.Content, llm.TextPart(call.Function.Arguments))
				response.StopReason = llm.StopReasonEndTurn

				continue
			}

			response.Content = append(response.Content, llm.ContentPart{
				Type: llm.ContentTypeToolUse,
				ToolUse: &llm.ToolUse{
					CallID: call.ID,
					Name:   call.Function.Name,
					Input:  xjson.SafeJSONRawMessage(call.Function.Arguments),
				},
			})
		}
	}

	return response
}

func convertUsage(usage *Usage) llm.Usage {
	converted := llm.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}

	if usage.PromptTokensDetails != nil {
		converted.CacheReadTokens = usage.PromptTokensDetails.CachedTokens
	}

	return converted
}

func mapFinishReason(reason string) llm.StopReason {
	switch reason {
	case "stop":
		return llm.StopReasonStop
	case "length":
		return llm.StopReasonMaxTokens
	case "tool_calls", "function_call":
		return llm.StopReasonToolUse
	default:
		return llm.StopReasonStop
	}
}

func transformError(err error) error {
	var httpErr *httpclient.Error
	if !errors.As(err, &httpErr) {
		return err
	}

	apiErr, parseErr := xjson.To[APIError](httpErr.Body)
	if parseErr == nil && apiErr.Error.Message != "" {
		return &llm.ResponseError{
			StatusCode: httpErr.StatusCode,
			Detail: llm.ErrorDetail{
				Type:    apiErr.Error.Type,
				Message: apiErr.Error.Message,
				Param:   apiErr.Error.Param,
			},
		}
	}

	return llm.NewResponseError(httpErr.StatusCode, string(httpErr.Body))
}
