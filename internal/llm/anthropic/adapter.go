// Package anthropic implements the provider adapter for the Anthropic
// Messages API.
package anthropic

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

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 8192

	// structuredOutputTool is the synthetic tool used to obtain structured
	// output. The Messages API has no response_format, so the schema is
	// presented as a forced tool and the tool input is read back as text.
	structuredOutputTool = "__json_response__"
)

// Config holds the connection settings for one Anthropic backend.
type Config struct {
	// BaseURL is the API root, e.g. https://api.anthropic.com.
	BaseURL string `json:"base_url"`

	APIKey string `json:"api_key"`
}

// Adapter translates normalized requests to the Messages wire protocol.
type Adapter struct {
	config *Config
	client *httpclient.HttpClient
}

var _ llm.Adapter = (*Adapter)(nil)

func NewAdapter(config *Config, client *httpclient.HttpClient) *Adapter {
	return &Adapter{config: config, client: client}
}

func (a *Adapter) Name() string {
	return "anthropic"
}

func (a *Adapter) buildRequest(request *llm.Request, stream bool) (*httpclient.Request, error) {
	if request.Model == "" {
		return nil, fmt.Errorf("%w: model is required", llm.ErrInvalidRequest)
	}

	if len(request.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages are required", llm.ErrInvalidRequest)
	}

	if request.MaxTokens != nil && *request.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive", llm.ErrInvalidRequest)
	}

	wireReq, err := convertRequest(request, stream)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages request: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Anthropic-Version", apiVersion)

	baseURL := strings.TrimSuffix(a.config.BaseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	return &httpclient.Request{
		Method:      http.MethodPost,
		URL:         baseURL + "/messages",
		Headers:     headers,
		ContentType: "application/json",
		Body:        body,
		Auth: &httpclient.AuthConfig{
			Type:      httpclient.AuthTypeAPIKey,
			APIKey:    a.config.APIKey,
			HeaderKey: "X-API-Key",
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

	var message Message

	if err := json.Unmarshal(httpResp.Body, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages response: %w", err)
	}

	return convertMessage(&message, request.ResponseFormat != nil && request.ResponseFormat.Type != llm.ResponseFormatText), nil
}

// Stream implements the streaming path. The returned stream ends with a
// message_done event on success.
func (a *Adapter) Stream(ctx context.Context, request *llm.Request) (streams.Stream[*llm.Event], error) {
	httpReq, err := a.buildRequest(request, true)
	if err != nil {
		return nil, err
	}

	upstream, err := a.client.DoStream(ctx, httpReq)
	if err != nil {
		return nil, transformError(err)
	}

	structured := request.ResponseFormat != nil && request.ResponseFormat.Type != llm.ResponseFormatText

	return newEventStream(upstream, structured), nil
}

func convertRequest(request *llm.Request, stream bool) (*MessageRequest, error) {
	wireReq := &MessageRequest{
		Model:       request.Model,
		MaxTokens:   lo.FromPtrOr(request.MaxTokens, defaultMaxTokens),
		System:      request.System,
		Temperature: request.Temperature,
		TopP:        request.TopP,
	}

	if stream {
		wireReq.Stream = lo.ToPtr(true)
	}

	for _, message := range request.Messages {
		param, err := convertMessageParam(&message)
		if err != nil {
			return nil, err
		}

		if len(param.Content) > 0 {
			wireReq.Messages = append(wireReq.Messages, *param)
		}
	}

	for _, tool := range request.Tools {
		wireReq.Tools = append(wireReq.Tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	if choice := request.ToolChoice; choice != nil {
		wireReq.ToolChoice = convertToolChoice(choice)
	}

	if format := request.ResponseFormat; format != nil && format.Type != llm.ResponseFormatText {
		schema := format.Schema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}

		wireReq.Tools = append(wireReq.Tools, Tool{
			Name:        structuredOutputTool,
			Description: "Record the final answer as a JSON object matching the schema.",
			InputSchema: schema,
		})
		wireReq.ToolChoice = &ToolChoice{Type: "tool", Name: structuredOutputTool}
	}

	if request.ReasoningBudget > 0 {
		wireReq.Thinking = &Thinking{
			Type:         "enabled",
			BudgetTokens: request.ReasoningBudget,
		}
	}

	return wireReq, nil
}

func convertMessageParam(message *llm.Message) (*MessageParam, error) {
	param := &MessageParam{Role: message.Role}

	for _, part := range message.Content {
		switch part.Type {
		case llm.ContentTypeText:
			param.Content = append(param.Content, ContentBlock{
				Type: BlockTypeText,
				Text: part.Text,
			})
		case llm.ContentTypeImage:
			block, ok := convertImage(part.Image)
			if ok {
				param.Content = append(param.Content, block)
			}
		case llm.ContentTypeToolUse:
			input := part.ToolUse.Input
			if len(input) == 0 {
				input = xjson.EmptyJSON
			}

			param.Content = append(param.Content, ContentBlock{
				Type:  BlockTypeToolUse,
				ID:    part.ToolUse.CallID,
				Name:  part.ToolUse.Name,
				Input: input,
			})
		case llm.ContentTypeToolResult:
			param.Content = append(param.Content, ContentBlock{
				Type:      BlockTypeToolResult,
				ToolUseID: part.ToolResult.CallID,
				Content:   part.ToolResult.Content,
			})
		case llm.ContentTypeThinking:
			// Replayed thinking from a prior turn. Sent without a signature,
			// the API rejects it, so it is folded into visible text.
			if part.Text != "" {
				param.Content = append(param.Content, ContentBlock{
					Type: BlockTypeText,
					Text: part.Text,
				})
			}
		default:
			return nil, fmt.Errorf("%w: unsupported content part %q", llm.ErrInvalidRequest, part.Type)
		}
	}

	return param, nil
}

func convertImage(image *llm.Image) (ContentBlock, bool) {
	if image == nil {
		return ContentBlock{}, false
	}

	if image.Base64 != "" {
		return ContentBlock{
			Type: BlockTypeImage,
			Source: &ImageSource{
				Type:      "base64",
				MediaType: image.MediaType,
				Data:      image.Base64,
			},
		}, true
	}

	if image.URL != "" {
		return ContentBlock{
			Type:   BlockTypeImage,
			Source: &ImageSource{Type: "url", URL: image.URL},
		}, true
	}

	return ContentBlock{}, false
}

func convertToolChoice(choice *llm.ToolChoice) *ToolChoice {
	switch choice.Mode {
	case llm.ToolChoiceRequired:
		return &ToolChoice{Type: "any"}
	case llm.ToolChoiceNone:
		return &ToolChoice{Type: "none"}
	case llm.ToolChoiceFunction:
		return &ToolChoice{Type: "tool", Name: choice.Name}
	default:
		return &ToolChoice{Type: "auto"}
	}
}

func convertMessage(message *Message, structured bool) *llm.Response {
	response := &llm.Response{
		Model:      message.Model,
		StopReason: mapStopReason(message.StopReason),
		Usage:      convertUsage(&message.Usage),
	}

	for _, block := range message.Content {
		switch block.Type {
		case BlockTypeText:
			response.Content = append(response.Content, llm.TextPart(block.Text))
		case BlockTypeThinking:
			response.Content = append(response.Content, llm.ContentPart{
				Type: llm.ContentTypeThinking,
				Text: block.Thinking,
			})
		case BlockTypeToolUse:
			if structured && block.Name == structuredOutputTool {
				response.Content = append(response.Content, llm.TextPart(string(block.Input)))
				response.StopReason = llm.StopReasonEndTurn

				continue
			}

			response.Content = append(response.Content, llm.ContentPart{
				Type: llm.ContentTypeToolUse,
				ToolUse: &llm.ToolUse{
					CallID: block.ID,
					Name:   block.Name,
					Input:  block.Input,
				},
			})
		}
	}

	return response
}

func convertUsage(usage *Usage) llm.Usage {
	return llm.Usage{
		InputTokens:     usage.InputTokens,
		OutputTokens:    usage.OutputTokens,
		CacheReadTokens: usage.CacheReadInputTokens,
	}
}

func mapStopReason(reason string) llm.StopReason {
	switch reason {
	case "end_turn":
		return llm.StopReasonEndTurn
	case "max_tokens":
		return llm.StopReasonMaxTokens
	case "tool_use":
		return llm.StopReasonToolUse
	case "stop_sequence":
		return llm.StopReasonStop
	default:
		return llm.StopReasonEndTurn
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
				Type:    "api_error",
				Message: apiErr.Error.Message,
			},
		}
	}

	return llm.NewResponseError(httpErr.StatusCode, string(httpErr.Body))
}
