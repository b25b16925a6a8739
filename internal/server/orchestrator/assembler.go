package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/pkg/xjson"
)

// conversation is the assembled provider-side view of one request.
type conversation struct {
	Messages []llm.Message
	System   string

	// InputItems is the full normalized item list, persisted so later
	// requests can chain onto this response.
	InputItems []responses.Item
}

// assemble builds the provider conversation for a request, seeding from the
// previous response when one is referenced.
func (o *Orchestrator) assemble(ctx context.Context, request *responses.Request) (*conversation, error) {
	var seed []responses.Item

	if request.PreviousResponseID != nil {
		record, err := o.store.Get(ctx, *request.PreviousResponseID)
		if err != nil {
			return nil, err
		}

		// Stored input first, then stored output, so the model sees its own
		// prior turn. Incomplete and cancelled priors are allowed; that is
		// what makes mid-stream injection work.
		seed = append(seed, record.InputItemList()...)
		seed = append(seed, record.OutputItemList()...)
	}

	items := normalizeInput(seed, &request.Input)

	conv := &conversation{InputItems: items}

	var system []string

	if request.Instructions != "" {
		system = append(system, request.Instructions)
	}

	for _, item := range items {
		switch item.Type {
		case responses.ItemTypeMessage, "":
			switch item.Role {
			case "system", "developer":
				if text := item.ContentText(); text != "" {
					system = append(system, text)
				}
			case "assistant":
				conv.appendMessage("assistant", messageParts(&item))
			default:
				conv.appendMessage("user", messageParts(&item))
			}
		case responses.ItemTypeFunctionCall:
			conv.appendToolUse(&item)
		case responses.ItemTypeFunctionCallOutput:
			conv.appendToolResult(&item)
		case responses.ItemTypeReasoning:
			conv.appendReasoning(&item)
		}
	}

	conv.System = strings.Join(system, "\n")

	return conv, nil
}

// normalizeInput appends the request input onto the seed items. A string
// input becomes a single user message; item references resolve against ids
// already present in the seed and drop silently otherwise.
func normalizeInput(seed []responses.Item, input *responses.Input) []responses.Item {
	items := seed

	if input.Text != nil {
		return append(items, responses.Item{
			Type:    responses.ItemTypeMessage,
			Role:    "user",
			Content: &responses.Input{Text: input.Text},
		})
	}

	seedByID := make(map[string]*responses.Item, len(seed))
	for i := range seed {
		if seed[i].ID != "" {
			seedByID[seed[i].ID] = &seed[i]
		}
	}

	for _, item := range input.Items {
		switch item.Type {
		case responses.ItemTypeItemReference:
			if referenced, ok := seedByID[item.ID]; ok {
				items = append(items, *referenced)
			}
		case responses.ItemTypeInputText, responses.ItemTypeText:
			// A bare text item at the top level reads as a user message.
			items = append(items, responses.Item{
				Type:    responses.ItemTypeMessage,
				Role:    "user",
				Content: &responses.Input{Items: []responses.Item{item}},
			})
		default:
			items = append(items, item)
		}
	}

	return items
}

func messageParts(item *responses.Item) []llm.ContentPart {
	if item.Content == nil {
		return nil
	}

	if item.Content.Text != nil {
		return []llm.ContentPart{llm.TextPart(*item.Content.Text)}
	}

	var parts []llm.ContentPart

	for _, ci := range item.Content.Items {
		switch ci.Type {
		case responses.ItemTypeInputText, responses.ItemTypeOutputText, responses.ItemTypeText:
			if ci.Text != nil {
				parts = append(parts, llm.TextPart(*ci.Text))
			}
		case responses.ItemTypeInputImage:
			if image := convertInputImage(&ci); image != nil {
				parts = append(parts, llm.ContentPart{Type: llm.ContentTypeImage, Image: image})
			}
		}
	}

	return parts
}

// convertInputImage parses the image_url field: data: URIs become inline
// base64, anything else stays a fetchable URL. Images without a URL drop.
func convertInputImage(item *responses.Item) *llm.Image {
	if item.ImageURL == nil || *item.ImageURL == "" {
		return nil
	}

	url := *item.ImageURL

	if payload, ok := strings.CutPrefix(url, "data:"); ok {
		mediaType, data, found := strings.Cut(payload, ";base64,")
		if !found {
			return nil
		}

		return &llm.Image{Base64: data, MediaType: mediaType}
	}

	return &llm.Image{URL: url}
}

func (c *conversation) appendMessage(role string, parts []llm.ContentPart) {
	if len(parts) == 0 {
		return
	}

	c.Messages = append(c.Messages, llm.Message{Role: role, Content: parts})
}

// appendToolUse folds a function_call item onto the trailing assistant
// message, starting a new one when the tail is not an assistant turn.
func (c *conversation) appendToolUse(item *responses.Item) {
	part := llm.ContentPart{
		Type: llm.ContentTypeToolUse,
		ToolUse: &llm.ToolUse{
			CallID: item.CallID,
			Name:   item.Name,
			Input:  parseArguments(item.Arguments),
		},
	}

	if tail := c.tail(); tail != nil && tail.Role == "assistant" {
		tail.Content = append(tail.Content, part)

		return
	}

	c.Messages = append(c.Messages, llm.Message{Role: "assistant", Content: []llm.ContentPart{part}})
}

// appendToolResult folds a function_call_output item onto the most recent
// user message when that message already carries tool results.
func (c *conversation) appendToolResult(item *responses.Item) {
	content := ""
	if item.Output != nil {
		if item.Output.Text != nil {
			content = *item.Output.Text
		} else {
			content = (&responses.Item{Content: item.Output}).ContentText()
		}
	}

	part := llm.ContentPart{
		Type: llm.ContentTypeToolResult,
		ToolResult: &llm.ToolResult{
			CallID:  item.CallID,
			Content: content,
		},
	}

	if tail := c.tail(); tail != nil && tail.Role == "user" && tail.HasToolResult() {
		tail.Content = append(tail.Content, part)

		return
	}

	c.Messages = append(c.Messages, llm.Message{Role: "user", Content: []llm.ContentPart{part}})
}

// appendReasoning replays a stored reasoning item as a thinking part on the
// assistant turn, so continuations keep the model's earlier reasoning.
func (c *conversation) appendReasoning(item *responses.Item) {
	text := ""
	for _, block := range item.Summary {
		text += block.Text
	}

	if text == "" {
		return
	}

	part := llm.ContentPart{Type: llm.ContentTypeThinking, Text: text}

	if tail := c.tail(); tail != nil && tail.Role == "assistant" {
		tail.Content = append(tail.Content, part)

		return
	}

	c.Messages = append(c.Messages, llm.Message{Role: "assistant", Content: []llm.ContentPart{part}})
}

func (c *conversation) tail() *llm.Message {
	if len(c.Messages) == 0 {
		return nil
	}

	return &c.Messages[len(c.Messages)-1]
}

// parseArguments keeps tool arguments as JSON when they parse and falls back
// to a JSON string of the raw input.
func parseArguments(arguments string) json.RawMessage {
	if arguments == "" {
		return json.RawMessage(xjson.EmptyJSON)
	}

	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}

	return xjson.MustMarshal(arguments)
}
