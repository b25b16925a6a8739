package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/pkg/xjson"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/server/store"
)

func userMessageItem(text string) responses.Item {
	return responses.Item{
		Type:    responses.ItemTypeMessage,
		Role:    "user",
		Content: &responses.Input{Text: lo.ToPtr(text)},
	}
}

func TestAssemble_StringInput(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	conv, err := orch.assemble(context.Background(), &responses.Request{
		Model:        "test-model",
		Instructions: "Be brief.",
		Input:        responses.Input{Text: lo.ToPtr("Hi")},
	})
	require.NoError(t, err)

	require.Equal(t, "Be brief.", conv.System)
	require.Empty(t, cmp.Diff([]llm.Message{
		{Role: "user", Content: []llm.ContentPart{llm.TextPart("Hi")}},
	}, conv.Messages))
	require.Len(t, conv.InputItems, 1)
}

func TestAssemble_SystemHoisting(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	conv, err := orch.assemble(context.Background(), &responses.Request{
		Model:        "test-model",
		Instructions: "Be brief.",
		Input: responses.Input{Items: []responses.Item{
			{
				Type:    responses.ItemTypeMessage,
				Role:    "system",
				Content: &responses.Input{Text: lo.ToPtr("You are terse.")},
			},
			{
				Type:    responses.ItemTypeMessage,
				Role:    "developer",
				Content: &responses.Input{Text: lo.ToPtr("Use metric units.")},
			},
			userMessageItem("Hi"),
		}},
	})
	require.NoError(t, err)

	require.Equal(t, "Be brief.\nYou are terse.\nUse metric units.", conv.System)
	require.Len(t, conv.Messages, 1)
	require.Equal(t, "user", conv.Messages[0].Role)
}

func TestAssemble_PreviousResponseChaining(t *testing.T) {
	orch, st := newTestOrchestrator(t, &fakeAdapter{})
	ctx := context.Background()

	inputItems := []responses.Item{userMessageItem("Hi")}
	outputItems := []responses.Item{{
		ID:   "msg_1",
		Type: responses.ItemTypeMessage,
		Role: "assistant",
		Content: &responses.Input{Items: []responses.Item{
			{Type: responses.ItemTypeOutputText, Text: lo.ToPtr("Hello!")},
		}},
	}}

	require.NoError(t, st.Upsert(ctx, &store.ResponseRecord{
		ID:          "resp_prev",
		Model:       "test-model",
		Status:      responses.StatusCompleted,
		InputItems:  string(xjson.MustMarshal(inputItems)),
		OutputItems: string(xjson.MustMarshal(outputItems)),
		CreatedAt:   time.Now(),
	}))

	conv, err := orch.assemble(ctx, &responses.Request{
		Model:              "test-model",
		Input:              responses.Input{Text: lo.ToPtr("And then?")},
		PreviousResponseID: lo.ToPtr("resp_prev"),
	})
	require.NoError(t, err)

	require.Empty(t, cmp.Diff([]llm.Message{
		{Role: "user", Content: []llm.ContentPart{llm.TextPart("Hi")}},
		{Role: "assistant", Content: []llm.ContentPart{llm.TextPart("Hello!")}},
		{Role: "user", Content: []llm.ContentPart{llm.TextPart("And then?")}},
	}, conv.Messages))

	// The assembled item list carries all three turns for the next chain.
	require.Len(t, conv.InputItems, 3)
}

func TestAssemble_PreviousResponseIncomplete(t *testing.T) {
	orch, st := newTestOrchestrator(t, &fakeAdapter{})
	ctx := context.Background()

	// An aborted stream leaves an incomplete row with partial output.
	inputItems := []responses.Item{userMessageItem("Tell me a story")}
	outputItems := []responses.Item{{
		ID:     "msg_1",
		Type:   responses.ItemTypeMessage,
		Role:   "assistant",
		Status: lo.ToPtr(responses.StatusIncomplete),
		Content: &responses.Input{Items: []responses.Item{
			{Type: responses.ItemTypeOutputText, Text: lo.ToPtr("Once upon a")},
		}},
	}}

	require.NoError(t, st.Upsert(ctx, &store.ResponseRecord{
		ID:                "resp_cut",
		Model:             "test-model",
		Status:            responses.StatusIncomplete,
		InputItems:        string(xjson.MustMarshal(inputItems)),
		OutputItems:       string(xjson.MustMarshal(outputItems)),
		IncompleteDetails: `{"reason":"interrupted"}`,
		CreatedAt:         time.Now(),
	}))

	conv, err := orch.assemble(ctx, &responses.Request{
		Model:              "test-model",
		Input:              responses.Input{Text: lo.ToPtr("continue")},
		PreviousResponseID: lo.ToPtr("resp_cut"),
	})
	require.NoError(t, err)

	require.Empty(t, cmp.Diff([]llm.Message{
		{Role: "user", Content: []llm.ContentPart{llm.TextPart("Tell me a story")}},
		{Role: "assistant", Content: []llm.ContentPart{llm.TextPart("Once upon a")}},
		{Role: "user", Content: []llm.ContentPart{llm.TextPart("continue")}},
	}, conv.Messages))
}

func TestAssemble_PreviousResponseMissing(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	_, err := orch.assemble(context.Background(), &responses.Request{
		Model:              "test-model",
		Input:              responses.Input{Text: lo.ToPtr("Hi")},
		PreviousResponseID: lo.ToPtr("resp_missing"),
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssemble_ToolCallRoundTrip(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	conv, err := orch.assemble(context.Background(), &responses.Request{
		Model: "test-model",
		Input: responses.Input{Items: []responses.Item{
			userMessageItem("Weather in NYC and SF?"),
			{
				Type:      responses.ItemTypeFunctionCall,
				CallID:    "call_1",
				Name:      "get_weather",
				Arguments: `{"city":"NYC"}`,
			},
			{
				Type:      responses.ItemTypeFunctionCall,
				CallID:    "call_2",
				Name:      "get_weather",
				Arguments: `{"city":"SF"}`,
			},
			{
				Type:   responses.ItemTypeFunctionCallOutput,
				CallID: "call_1",
				Output: &responses.Input{Text: lo.ToPtr("Sunny")},
			},
			{
				Type:   responses.ItemTypeFunctionCallOutput,
				CallID: "call_2",
				Output: &responses.Input{Text: lo.ToPtr("Foggy")},
			},
		}},
	})
	require.NoError(t, err)

	// Consecutive calls fold into one assistant turn, their results into one
	// user turn.
	require.Len(t, conv.Messages, 3)

	assistant := conv.Messages[1]
	require.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.Content, 2)
	require.Equal(t, llm.ContentTypeToolUse, assistant.Content[0].Type)
	require.Equal(t, "call_1", assistant.Content[0].ToolUse.CallID)
	require.JSONEq(t, `{"city":"NYC"}`, string(assistant.Content[0].ToolUse.Input))

	results := conv.Messages[2]
	require.Equal(t, "user", results.Role)
	require.Len(t, results.Content, 2)
	require.Equal(t, llm.ContentTypeToolResult, results.Content[0].Type)
	require.Equal(t, "Sunny", results.Content[0].ToolResult.Content)
	require.Equal(t, "Foggy", results.Content[1].ToolResult.Content)
}

func TestAssemble_ReasoningReplay(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	conv, err := orch.assemble(context.Background(), &responses.Request{
		Model: "test-model",
		Input: responses.Input{Items: []responses.Item{
			userMessageItem("Hi"),
			{
				Type:    responses.ItemTypeMessage,
				Role:    "assistant",
				Content: &responses.Input{Text: lo.ToPtr("Hello")},
			},
			{
				Type: responses.ItemTypeReasoning,
				Summary: []responses.ReasoningSummary{
					{Type: "summary_text", Text: "prior thinking"},
				},
			},
		}},
	})
	require.NoError(t, err)

	require.Len(t, conv.Messages, 2)

	assistant := conv.Messages[1]
	require.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.Content, 2)
	require.Equal(t, llm.ContentTypeThinking, assistant.Content[1].Type)
	require.Equal(t, "prior thinking", assistant.Content[1].Text)
}

func TestNormalizeInput_ItemReference(t *testing.T) {
	seed := []responses.Item{
		{
			ID:      "msg_1",
			Type:    responses.ItemTypeMessage,
			Role:    "assistant",
			Content: &responses.Input{Text: lo.ToPtr("earlier")},
		},
	}

	items := normalizeInput(seed, &responses.Input{Items: []responses.Item{
		{Type: responses.ItemTypeItemReference, ID: "msg_1"},
		{Type: responses.ItemTypeItemReference, ID: "msg_unknown"},
		userMessageItem("next"),
	}})

	// The known reference resolves to a copy; the unknown one drops.
	require.Len(t, items, 3)
	require.Equal(t, "msg_1", items[1].ID)
	require.Equal(t, "assistant", items[1].Role)
	require.Equal(t, "user", items[2].Role)
}

func TestNormalizeInput_BareTextItem(t *testing.T) {
	items := normalizeInput(nil, &responses.Input{Items: []responses.Item{
		{Type: responses.ItemTypeInputText, Text: lo.ToPtr("Hi")},
	}})

	require.Len(t, items, 1)
	require.Equal(t, responses.ItemTypeMessage, items[0].Type)
	require.Equal(t, "user", items[0].Role)
	require.Equal(t, "Hi", items[0].ContentText())
}

func TestAssemble_InputImage(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	conv, err := orch.assemble(context.Background(), &responses.Request{
		Model: "test-model",
		Input: responses.Input{Items: []responses.Item{
			{
				Type: responses.ItemTypeMessage,
				Role: "user",
				Content: &responses.Input{Items: []responses.Item{
					{Type: responses.ItemTypeInputText, Text: lo.ToPtr("What is this?")},
					{
						Type:     responses.ItemTypeInputImage,
						ImageURL: lo.ToPtr("data:image/png;base64,aGVsbG8="),
					},
					{
						Type:     responses.ItemTypeInputImage,
						ImageURL: lo.ToPtr("https://example.com/cat.png"),
					},
				}},
			},
		}},
	})
	require.NoError(t, err)

	require.Len(t, conv.Messages, 1)

	content := conv.Messages[0].Content
	require.Len(t, content, 3)

	require.Equal(t, llm.ContentTypeImage, content[1].Type)
	require.Equal(t, "image/png", content[1].Image.MediaType)
	require.Equal(t, "aGVsbG8=", content[1].Image.Base64)

	require.Equal(t, llm.ContentTypeImage, content[2].Type)
	require.Equal(t, "https://example.com/cat.png", content[2].Image.URL)
}

func TestConvertInputImage_Malformed(t *testing.T) {
	require.Nil(t, convertInputImage(&responses.Item{}))
	require.Nil(t, convertInputImage(&responses.Item{ImageURL: lo.ToPtr("")}))
	// A data URI without a base64 payload drops.
	require.Nil(t, convertInputImage(&responses.Item{ImageURL: lo.ToPtr("data:image/png,raw")}))
}

func TestParseArguments(t *testing.T) {
	require.JSONEq(t, `{}`, string(parseArguments("")))
	require.JSONEq(t, `{"a":1}`, string(parseArguments(`{"a":1}`)))
	// Invalid JSON falls back to a JSON string of the raw input.
	require.JSONEq(t, `"{broken"`, string(parseArguments("{broken")))
}
