package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/zhenzou/executors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/pkg/streams"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/server/store"
)

// fakeAdapter scripts provider replies for orchestrator tests.
type fakeAdapter struct {
	chatResponse *llm.Response
	chatErr      error

	events    []*llm.Event
	streamErr error

	lastRequest *llm.Request
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) Chat(_ context.Context, request *llm.Request) (*llm.Response, error) {
	a.lastRequest = request

	if a.chatErr != nil {
		return nil, a.chatErr
	}

	return a.chatResponse, nil
}

func (a *fakeAdapter) Stream(_ context.Context, request *llm.Request) (streams.Stream[*llm.Event], error) {
	a.lastRequest = request

	return &scriptedStream{events: a.events, err: a.streamErr}, nil
}

// scriptedStream yields the scripted events, then surfaces err.
type scriptedStream struct {
	events []*llm.Event
	pos    int
	err    error
	closed bool
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.events) {
		return false
	}

	s.pos++

	return true
}

func (s *scriptedStream) Current() *llm.Event { return s.events[s.pos-1] }

func (s *scriptedStream) Err() error { return s.err }

func (s *scriptedStream) Close() error {
	s.closed = true

	return nil
}

func newTestOrchestrator(t *testing.T, adapter llm.Adapter) (*Orchestrator, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	st, err := store.NewStoreWithDB(db)
	require.NoError(t, err)

	registry := NewRegistry()
	registry.Register(&ModelEntry{
		ID:              "test-model",
		UnderlyingModel: "provider-model",
		Adapter:         adapter,
	})

	executor := executors.NewPoolScheduleExecutor(
		executors.WithMaxConcurrent(4),
		executors.WithMaxBlockingTasks(16),
	)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = executor.Shutdown(shutdownCtx)
	})

	return NewOrchestrator(registry, st, executor), st
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Model:      "provider-model",
		Content:    []llm.ContentPart{llm.TextPart(text)},
		StopReason: llm.StopReasonEndTurn,
		Usage:      llm.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func TestCreate_Sync(t *testing.T) {
	adapter := &fakeAdapter{chatResponse: textResponse("Hello there")}
	orch, _ := newTestOrchestrator(t, adapter)

	response, err := orch.Create(context.Background(), &responses.Request{
		Model:        "test-model",
		Instructions: "Be brief.",
		Input:        responses.Input{Text: lo.ToPtr("Hi")},
	})
	require.NoError(t, err)

	require.Equal(t, "response", response.Object)
	require.Equal(t, responses.StatusCompleted, response.Status)
	require.Equal(t, "Hello there", response.OutputText())
	require.NotNil(t, response.Usage)
	require.EqualValues(t, 15, response.Usage.TotalTokens)

	require.Equal(t, "provider-model", adapter.lastRequest.Model)
	require.Equal(t, "Be brief.", adapter.lastRequest.System)

	// The stored row reconstructs the same response.
	stored, err := orch.Get(context.Background(), response.ID)
	require.NoError(t, err)
	require.Equal(t, responses.StatusCompleted, stored.Status)
	require.Equal(t, "Hello there", stored.OutputText())
}

func TestCreate_StoreDisabled(t *testing.T) {
	adapter := &fakeAdapter{chatResponse: textResponse("Hi")}
	orch, _ := newTestOrchestrator(t, adapter)

	response, err := orch.Create(context.Background(), &responses.Request{
		Model: "test-model",
		Input: responses.Input{Text: lo.ToPtr("Hi")},
		Store: lo.ToPtr(false),
	})
	require.NoError(t, err)

	_, err = orch.Get(context.Background(), response.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreate_UnknownModel(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeAdapter{})

	_, err := orch.Create(context.Background(), &responses.Request{
		Model: "no-such-model",
		Input: responses.Input{Text: lo.ToPtr("Hi")},
	})

	var invalidErr *responses.InvalidRequestError
	require.ErrorAs(t, err, &invalidErr)
	require.Equal(t, "model", invalidErr.Param)
	require.Contains(t, invalidErr.Message, "test-model")
}

func TestCreate_ProviderError(t *testing.T) {
	adapter := &fakeAdapter{chatErr: llm.NewResponseError(500, "upstream exploded")}
	orch, _ := newTestOrchestrator(t, adapter)

	_, err := orch.Create(context.Background(), &responses.Request{
		Model: "test-model",
		Input: responses.Input{Text: lo.ToPtr("Hi")},
	})

	var respErr *llm.ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, 500, respErr.StatusCode)
}

func TestCreate_Background(t *testing.T) {
	adapter := &fakeAdapter{chatResponse: textResponse("Background result")}
	orch, _ := newTestOrchestrator(t, adapter)

	response, err := orch.Create(context.Background(), &responses.Request{
		Model:      "test-model",
		Input:      responses.Input{Text: lo.ToPtr("Hi")},
		Background: lo.ToPtr(true),
	})
	require.NoError(t, err)
	require.Equal(t, responses.StatusInProgress, response.Status)
	require.Empty(t, response.Output)

	require.Eventually(t, func() bool {
		stored, err := orch.Get(context.Background(), response.ID)

		return err == nil && stored.Status == responses.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := orch.Get(context.Background(), response.ID)
	require.NoError(t, err)
	require.Equal(t, "Background result", stored.OutputText())
	require.NotNil(t, stored.Usage)
	require.EqualValues(t, 15, stored.Usage.TotalTokens)
}

func TestCreate_BackgroundFailure(t *testing.T) {
	adapter := &fakeAdapter{chatErr: errors.New("provider down")}
	orch, _ := newTestOrchestrator(t, adapter)

	response, err := orch.Create(context.Background(), &responses.Request{
		Model:      "test-model",
		Input:      responses.Input{Text: lo.ToPtr("Hi")},
		Background: lo.ToPtr(true),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := orch.Get(context.Background(), response.ID)

		return err == nil && stored.Status == responses.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	stored, err := orch.Get(context.Background(), response.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Error)
	require.Equal(t, "provider down", stored.Error.Message)
}

func TestCancel(t *testing.T) {
	orch, st := newTestOrchestrator(t, &fakeAdapter{})
	ctx := context.Background()

	require.NoError(t, st.Upsert(ctx, &store.ResponseRecord{
		ID:        "resp_1",
		Model:     "test-model",
		Status:    responses.StatusInProgress,
		CreatedAt: time.Now(),
	}))

	response, transitioned, err := orch.Cancel(ctx, "resp_1")
	require.NoError(t, err)
	require.True(t, transitioned)
	require.Equal(t, responses.StatusCancelled, response.Status)

	// Cancel is monotone: a second call reports no transition.
	response, transitioned, err = orch.Cancel(ctx, "resp_1")
	require.NoError(t, err)
	require.False(t, transitioned)
	require.Equal(t, responses.StatusCancelled, response.Status)
}

func TestBuildProviderRequest(t *testing.T) {
	entry := &ModelEntry{UnderlyingModel: "provider-model"}
	schema := json.RawMessage(`{"type":"object"}`)

	request := &responses.Request{
		Model:           "test-model",
		Temperature:     lo.ToPtr(0.7),
		MaxOutputTokens: lo.ToPtr(int64(256)),
		Tools: []responses.Tool{
			{Type: responses.ToolTypeFunction, Name: "get_weather", Parameters: schema},
		},
		ToolChoice: &responses.ToolChoice{Type: "function", Name: "get_weather"},
		Reasoning:  &responses.Reasoning{Effort: "medium"},
		Text: &responses.TextOptions{Format: &responses.TextFormat{
			Type: "json_schema", Name: "weather", Schema: schema,
		}},
	}

	providerReq := buildProviderRequest(request, entry, &conversation{System: "sys"})

	require.Equal(t, "provider-model", providerReq.Model)
	require.Equal(t, "sys", providerReq.System)
	require.InDelta(t, 0.7, *providerReq.Temperature, 1e-9)
	require.EqualValues(t, 256, *providerReq.MaxTokens)
	require.Len(t, providerReq.Tools, 1)
	require.Equal(t, "get_weather", providerReq.Tools[0].Name)
	require.Equal(t, llm.ToolChoiceFunction, providerReq.ToolChoice.Mode)
	require.Equal(t, "get_weather", providerReq.ToolChoice.Name)
	require.EqualValues(t, 8192, providerReq.ReasoningBudget)
	require.Equal(t, "json_schema", providerReq.ResponseFormat.Type)
}

func TestProjectOutput(t *testing.T) {
	output := projectOutput([]llm.ContentPart{
		llm.TextPart("Hello"),
		{
			Type: llm.ContentTypeToolUse,
			ToolUse: &llm.ToolUse{
				CallID: "call_1",
				Name:   "get_weather",
			},
		},
		{Type: llm.ContentTypeThinking, Text: "hmm"},
	})

	require.Len(t, output, 3)

	// Reasoning moves to the head.
	require.Equal(t, responses.ItemTypeReasoning, output[0].Type)
	require.Equal(t, "summary_text", output[0].Summary[0].Type)
	require.Equal(t, "hmm", output[0].Summary[0].Text)

	require.Equal(t, responses.ItemTypeMessage, output[1].Type)
	require.Equal(t, "Hello", output[1].ContentText())

	require.Equal(t, responses.ItemTypeFunctionCall, output[2].Type)
	require.Equal(t, "call_1", output[2].CallID)
	// Empty tool input projects as an empty JSON object.
	require.Equal(t, "{}", output[2].Arguments)

	require.Equal(t, []responses.Item{}, projectOutput(nil))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&ModelEntry{ID: "b-model", Adapter: &fakeAdapter{}})
	registry.Register(&ModelEntry{ID: "a-model", Adapter: &fakeAdapter{}})

	list := registry.List()
	require.Len(t, list, 2)
	require.Equal(t, "a-model", list[0].ID)
	require.Equal(t, "fake", list[0].OwnedBy)
	require.NotZero(t, list[0].Created)

	entry, err := registry.Resolve("a-model")
	require.NoError(t, err)
	require.Equal(t, "a-model", entry.ID)

	_, ok := registry.Lookup("missing")
	require.False(t, ok)
}
