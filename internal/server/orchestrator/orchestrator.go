package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"github.com/zhenzou/executors"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/log"
	"github.com/prismhub/prism/internal/pkg/xcontext"
	"github.com/prismhub/prism/internal/pkg/xid"
	"github.com/prismhub/prism/internal/pkg/xjson"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/server/store"
)

// Reasoning effort levels translate to provider thinking-token budgets.
var effortBudgets = map[string]int64{
	"low":    1024,
	"medium": 8192,
	"high":   32768,
}

// Orchestrator drives provider calls for the Responses API.
type Orchestrator struct {
	registry *Registry
	store    *store.Store
	executor executors.ScheduledExecutor

	// checkpointInterval is the debounce window for partial-output writes
	// during streaming.
	checkpointInterval time.Duration
}

func NewOrchestrator(registry *Registry, st *store.Store, executor executors.ScheduledExecutor) *Orchestrator {
	return &Orchestrator{
		registry:           registry,
		store:              st,
		executor:           executor,
		checkpointInterval: time.Second,
	}
}

// Create handles the blocking path: background dispatch when requested,
// otherwise a synchronous provider call.
func (o *Orchestrator) Create(ctx context.Context, request *responses.Request) (*responses.Response, error) {
	entry, err := o.registry.Resolve(request.Model)
	if err != nil {
		return nil, err
	}

	conv, err := o.assemble(ctx, request)
	if err != nil {
		return nil, err
	}

	providerReq := buildProviderRequest(request, entry, conv)

	if request.IsBackground() {
		return o.createBackground(ctx, request, entry, conv, providerReq)
	}

	response := newResponseShell(request)

	result, err := entry.Adapter.Chat(ctx, providerReq)
	if err != nil {
		return nil, err
	}

	response.Status = responses.StatusCompleted
	response.Output = projectOutput(result.Content)
	response.Usage = projectUsage(&result.Usage)

	if request.StoreEnabled() {
		record := newRecord(request, conv, response)
		record.CompletedAt = lo.ToPtr(time.Now())

		if err := o.store.Upsert(ctx, record); err != nil {
			return nil, err
		}
	}

	return response, nil
}

// createBackground persists an in_progress row, schedules the provider call
// to run after the HTTP response is sent, and returns immediately.
func (o *Orchestrator) createBackground(
	ctx context.Context,
	request *responses.Request,
	entry *ModelEntry,
	conv *conversation,
	providerReq *llm.Request,
) (*responses.Response, error) {
	response := newResponseShell(request)
	response.Status = responses.StatusInProgress

	record := newRecord(request, conv, response)
	if err := o.store.Upsert(ctx, record); err != nil {
		return nil, err
	}

	// The task must survive the request; only context values carry over.
	taskCtx := xcontext.Detach(ctx)

	_, err := o.executor.ScheduleFunc(func(context.Context) {
		o.runBackground(taskCtx, entry, providerReq, response)
	}, 0)
	if err != nil {
		return nil, err
	}

	return response, nil
}

func (o *Orchestrator) runBackground(
	ctx context.Context,
	entry *ModelEntry,
	providerReq *llm.Request,
	response *responses.Response,
) {
	result, err := entry.Adapter.Chat(ctx, providerReq)
	if err != nil {
		log.Error(ctx, "background response failed",
			log.String("response_id", response.ID), log.Cause(err))

		record := &store.ResponseRecord{
			ID:          response.ID,
			Status:      responses.StatusFailed,
			Error:       string(xjson.MustMarshal(responseError(err))),
			CompletedAt: lo.ToPtr(time.Now()),
		}
		if finishErr := o.store.Finish(ctx, record); finishErr != nil {
			log.Error(ctx, "failed to persist failed response",
				log.String("response_id", response.ID), log.Cause(finishErr))
		}

		return
	}

	record := &store.ResponseRecord{
		ID:          response.ID,
		Status:      responses.StatusCompleted,
		OutputItems: string(xjson.MustMarshal(projectOutput(result.Content))),
		Usage:       string(xjson.MustMarshal(projectUsage(&result.Usage))),
		CompletedAt: lo.ToPtr(time.Now()),
	}

	if err := o.store.Finish(ctx, record); err != nil {
		log.Error(ctx, "failed to persist completed response",
			log.String("response_id", response.ID), log.Cause(err))
	}
}

// Get returns the stored response object for id.
func (o *Orchestrator) Get(ctx context.Context, id string) (*responses.Response, error) {
	record, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return record.ToResponse(), nil
}

// Delete removes the stored response for id.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	return o.store.Delete(ctx, id)
}

// Cancel transitions a live response to cancelled. It reports whether the
// transition happened and returns the resulting object either way.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*responses.Response, bool, error) {
	transitioned, err := o.store.Cancel(ctx, id, time.Now())
	if err != nil {
		return nil, false, err
	}

	record, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	return record.ToResponse(), transitioned, nil
}

// Models lists the registry for /v1/models.
func (o *Orchestrator) Models() []ModelSummary {
	return o.registry.List()
}

// Model resolves one registry entry for /v1/models/{id}.
func (o *Orchestrator) Model(id string) (ModelSummary, bool) {
	entry, ok := o.registry.Lookup(id)
	if !ok {
		return ModelSummary{}, false
	}

	return ModelSummary{
		ID:      entry.ID,
		Object:  "model",
		Created: entry.Created,
		OwnedBy: entry.OwnedBy,
	}, true
}

// buildProviderRequest maps the protocol request onto the normalized
// provider request.
func buildProviderRequest(request *responses.Request, entry *ModelEntry, conv *conversation) *llm.Request {
	providerReq := &llm.Request{
		Model:       entry.UnderlyingModel,
		System:      conv.System,
		Messages:    conv.Messages,
		Temperature: request.Temperature,
		TopP:        request.TopP,
		MaxTokens:   request.MaxOutputTokens,
		Metadata:    request.Metadata,
	}

	for _, tool := range request.Tools {
		// Validation already rejected non-function tools.
		if tool.Type != responses.ToolTypeFunction {
			continue
		}

		providerReq.Tools = append(providerReq.Tools, llm.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}

	if choice := request.ToolChoice; choice != nil {
		providerReq.ToolChoice = convertToolChoice(choice)
	}

	if request.Reasoning != nil {
		providerReq.ReasoningBudget = effortBudgets[request.Reasoning.Effort]
	}

	if request.Text != nil && request.Text.Format != nil && request.Text.Format.Type != "" {
		providerReq.ResponseFormat = &llm.ResponseFormat{
			Type:   request.Text.Format.Type,
			Name:   request.Text.Format.Name,
			Schema: request.Text.Format.Schema,
		}
	}

	return providerReq
}

func convertToolChoice(choice *responses.ToolChoice) *llm.ToolChoice {
	switch {
	case choice.Mode != "":
		return &llm.ToolChoice{Mode: choice.Mode}
	case choice.Type == responses.ToolTypeFunction:
		return &llm.ToolChoice{Mode: llm.ToolChoiceFunction, Name: choice.Name}
	default:
		return &llm.ToolChoice{Mode: llm.ToolChoiceAuto}
	}
}

// newResponseShell builds the response object skeleton that echoes the
// request parameters.
func newResponseShell(request *responses.Request) *responses.Response {
	response := &responses.Response{
		Object:             "response",
		ID:                 xid.Response(),
		CreatedAt:          time.Now().Unix(),
		Model:              request.Model,
		Output:             []responses.Item{},
		Instructions:       request.Instructions,
		Metadata:           request.Metadata,
		ParallelToolCalls:  request.ParallelToolCalls,
		Temperature:        request.Temperature,
		TopP:               request.TopP,
		MaxOutputTokens:    request.MaxOutputTokens,
		Tools:              request.Tools,
		ToolChoice:         request.ToolChoice,
		Text:               request.Text,
		Reasoning:          request.Reasoning,
		PreviousResponseID: request.PreviousResponseID,
		Truncation:         request.Truncation,
	}

	if request.IsBackground() {
		response.Background = lo.ToPtr(true)
	}

	return response
}

// newRecord serializes a response and its assembled input for storage.
func newRecord(request *responses.Request, conv *conversation, response *responses.Response) *store.ResponseRecord {
	params := &store.Params{
		Temperature:       request.Temperature,
		TopP:              request.TopP,
		MaxOutputTokens:   request.MaxOutputTokens,
		Tools:             request.Tools,
		ToolChoice:        request.ToolChoice,
		Text:              request.Text,
		Reasoning:         request.Reasoning,
		ParallelToolCalls: request.ParallelToolCalls,
		Truncation:        request.Truncation,
	}

	record := &store.ResponseRecord{
		ID:           response.ID,
		Model:        request.Model,
		Status:       response.Status,
		Instructions: request.Instructions,
		InputItems:   string(xjson.MustMarshal(conv.InputItems)),
		OutputItems:  string(xjson.MustMarshal(response.Output)),
		Params:       string(xjson.MustMarshal(params)),
		Background:   request.IsBackground(),
		CreatedAt:    time.Unix(response.CreatedAt, 0),
	}

	if response.Usage != nil {
		record.Usage = string(xjson.MustMarshal(response.Usage))
	}

	if request.Metadata != nil {
		record.Metadata = string(xjson.MustMarshal(request.Metadata))
	}

	if request.PreviousResponseID != nil {
		record.PreviousResponseID = *request.PreviousResponseID
	}

	return record
}

// projectOutput maps provider content parts onto output items. Reasoning
// items move to the head so thinking precedes content.
func projectOutput(content []llm.ContentPart) []responses.Item {
	var (
		reasoning []responses.Item
		items     []responses.Item
	)

	for _, part := range content {
		switch part.Type {
		case llm.ContentTypeText:
			items = append(items, newMessageItem(xid.Message(), part.Text, responses.StatusCompleted))
		case llm.ContentTypeToolUse:
			arguments := string(part.ToolUse.Input)
			if arguments == "" {
				arguments = "{}"
			}

			items = append(items, responses.Item{
				ID:        xid.FunctionCall(),
				Type:      responses.ItemTypeFunctionCall,
				Status:    lo.ToPtr(responses.StatusCompleted),
				CallID:    part.ToolUse.CallID,
				Name:      part.ToolUse.Name,
				Arguments: arguments,
			})
		case llm.ContentTypeThinking:
			reasoning = append(reasoning, newReasoningItem(part.Text))
		}
	}

	output := append(reasoning, items...)
	if output == nil {
		output = []responses.Item{}
	}

	return output
}

func newMessageItem(id, text, status string) responses.Item {
	return responses.Item{
		ID:     id,
		Type:   responses.ItemTypeMessage,
		Role:   "assistant",
		Status: lo.ToPtr(status),
		Content: &responses.Input{Items: []responses.Item{{
			Type: responses.ItemTypeOutputText,
			Text: lo.ToPtr(text),
		}}},
	}
}

func newReasoningItem(text string) responses.Item {
	return responses.Item{
		ID:     xid.Reasoning(),
		Type:   responses.ItemTypeReasoning,
		Status: lo.ToPtr(responses.StatusCompleted),
		Summary: []responses.ReasoningSummary{{
			Type: "summary_text",
			Text: text,
		}},
	}
}

// projectUsage converts normalized usage into the protocol shape.
func projectUsage(usage *llm.Usage) *responses.Usage {
	return &responses.Usage{
		InputTokens:        usage.InputTokens,
		InputTokensDetails: responses.InputTokensDetails{CachedTokens: usage.CacheReadTokens},
		OutputTokens:       usage.OutputTokens,
		TotalTokens:        usage.TotalTokens(),
	}
}

// responseError normalizes any error into the stored error payload.
func responseError(err error) *responses.Error {
	var respErr *llm.ResponseError
	if errors.As(err, &respErr) {
		return &responses.Error{
			Code:    respErr.Detail.Code,
			Message: respErr.Detail.Message,
		}
	}

	return &responses.Error{Message: err.Error()}
}
