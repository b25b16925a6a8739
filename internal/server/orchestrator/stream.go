package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/log"
	"github.com/prismhub/prism/internal/pkg/streams"
	"github.com/prismhub/prism/internal/pkg/xcontext"
	"github.com/prismhub/prism/internal/pkg/xid"
	"github.com/prismhub/prism/internal/pkg/xjson"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/server/store"
)

// functionCall is the per-call bookkeeping of a streamed tool invocation.
type functionCall struct {
	id          string
	callID      string
	name        string
	args        strings.Builder
	done        bool
	outputIndex int
}

// ResponseStream projects normalized provider events into the ordered
// Responses API event sequence. It is single-consumer; the HTTP handler
// drives it and writes each event to the SSE sink.
type ResponseStream struct {
	orch     *Orchestrator
	upstream streams.Stream[*llm.Event]
	check    *checkpointer

	response *responses.Response
	storing  bool

	// writeCtx is detached from the request so terminal persistence still
	// runs when the client has gone.
	writeCtx context.Context

	seq     int
	started bool

	nextIndex int

	msgOpen  bool
	msgID    string
	msgIndex int
	text     strings.Builder

	thinking strings.Builder

	calls       []*functionCall
	callsByID   map[string]*functionCall
	currentCall *functionCall

	pending []*responses.StreamEvent
	current *responses.StreamEvent
	err     error
	done    bool
}

var _ streams.Stream[*responses.StreamEvent] = (*ResponseStream)(nil)

// CreateStream starts the streaming path. When storing, the in_progress row
// is inserted before the first event is available to the caller.
func (o *Orchestrator) CreateStream(ctx context.Context, request *responses.Request) (*ResponseStream, error) {
	entry, err := o.registry.Resolve(request.Model)
	if err != nil {
		return nil, err
	}

	conv, err := o.assemble(ctx, request)
	if err != nil {
		return nil, err
	}

	providerReq := buildProviderRequest(request, entry, conv)
	providerReq.Stream = true

	response := newResponseShell(request)
	response.Status = responses.StatusInProgress

	storing := request.StoreEnabled()
	writeCtx := xcontext.Detach(ctx)

	if storing {
		if err := o.store.Upsert(ctx, newRecord(request, conv, response)); err != nil {
			return nil, err
		}
	}

	upstream, err := entry.Adapter.Stream(ctx, providerReq)
	if err != nil {
		if storing {
			o.persistTerminal(writeCtx, response.ID, responses.StatusFailed, "", "", responseError(err), nil)
		}

		return nil, err
	}

	stream := &ResponseStream{
		orch:      o,
		upstream:  upstream,
		response:  response,
		storing:   storing,
		writeCtx:  writeCtx,
		callsByID: make(map[string]*functionCall),
	}

	if storing {
		stream.check = newCheckpointer(o.store, o.executor, o.checkpointInterval, writeCtx, response.ID)
	}

	return stream, nil
}

// Response returns the response shell; handlers use its id for logging.
func (s *ResponseStream) Response() *responses.Response {
	return s.response
}

func (s *ResponseStream) Next() bool {
	for {
		if len(s.pending) > 0 {
			s.current = s.pending[0]
			s.pending = s.pending[1:]

			return true
		}

		if s.done || s.err != nil {
			return false
		}

		if !s.started {
			s.started = true

			inProgress := *s.response
			inProgress.Status = responses.StatusInProgress

			s.push(&responses.StreamEvent{
				Type:     responses.StreamEventTypeResponseInProgress,
				Response: &inProgress,
			})

			continue
		}

		if !s.upstream.Next() {
			s.finishUpstream(s.upstream.Err())

			continue
		}

		s.handle(s.upstream.Current())
	}
}

// push assigns the sequence number at enqueue time so queued events keep
// their order.
func (s *ResponseStream) push(event *responses.StreamEvent) {
	s.seq++
	event.SequenceNumber = s.seq
	s.pending = append(s.pending, event)
}

func (s *ResponseStream) handle(event *llm.Event) {
	switch event.Type {
	case llm.EventTextDelta:
		s.handleTextDelta(event.Delta)
	case llm.EventToolCallStart:
		s.handleToolCallStart(event)
	case llm.EventToolCallDelta:
		if call := s.lookupCall(event.CallID); call != nil && !call.done {
			call.args.WriteString(event.Delta)
		}
	case llm.EventToolCallDone:
		s.handleToolCallDone(event)
	case llm.EventThinkingDelta:
		s.thinking.WriteString(event.Delta)
	case llm.EventThinkingDone:
		s.thinking.Reset()
		s.thinking.WriteString(event.Text)
	case llm.EventMessageDone:
		s.handleMessageDone(event)
	}
}

// handleTextDelta opens the message item lazily: the item and its text part
// are announced on the first delta only.
func (s *ResponseStream) handleTextDelta(delta string) {
	if !s.msgOpen {
		s.msgOpen = true
		s.msgID = xid.Message()
		s.msgIndex = s.nextIndex
		s.nextIndex++

		item := newMessageItem(s.msgID, "", responses.StatusInProgress)
		item.Content = &responses.Input{Items: []responses.Item{}}

		s.push(&responses.StreamEvent{
			Type:        responses.StreamEventTypeItemAdded,
			OutputIndex: lo.ToPtr(s.msgIndex),
			Item:        &item,
		})

		s.push(&responses.StreamEvent{
			Type:         responses.StreamEventTypeContentPartAdded,
			ItemID:       lo.ToPtr(s.msgID),
			OutputIndex:  lo.ToPtr(s.msgIndex),
			ContentIndex: lo.ToPtr(0),
			Part:         &responses.ContentPart{Type: responses.ItemTypeOutputText, Text: lo.ToPtr("")},
		})
	}

	s.text.WriteString(delta)

	s.push(&responses.StreamEvent{
		Type:         responses.StreamEventTypeOutputTextDelta,
		ItemID:       lo.ToPtr(s.msgID),
		OutputIndex:  lo.ToPtr(s.msgIndex),
		ContentIndex: lo.ToPtr(0),
		Delta:        lo.ToPtr(delta),
	})

	s.checkpoint()
}

func (s *ResponseStream) handleToolCallStart(event *llm.Event) {
	call := &functionCall{
		id:          xid.FunctionCall(),
		callID:      event.CallID,
		name:        event.Name,
		outputIndex: s.nextIndex,
	}
	s.nextIndex++

	s.calls = append(s.calls, call)
	if call.callID != "" {
		s.callsByID[call.callID] = call
	}

	s.currentCall = call

	s.push(&responses.StreamEvent{
		Type:        responses.StreamEventTypeItemAdded,
		OutputIndex: lo.ToPtr(call.outputIndex),
		Item: &responses.Item{
			ID:        call.id,
			Type:      responses.ItemTypeFunctionCall,
			Status:    lo.ToPtr(responses.StatusInProgress),
			CallID:    call.callID,
			Name:      call.name,
			Arguments: "",
		},
	})
}

func (s *ResponseStream) handleToolCallDone(event *llm.Event) {
	call := s.lookupCall(event.CallID)
	if call == nil {
		return
	}

	// The done event carries the authoritative argument string.
	call.args.Reset()
	call.args.WriteString(event.Arguments)
	call.done = true

	if s.currentCall == call {
		s.currentCall = nil
	}

	s.push(&responses.StreamEvent{
		Type:        responses.StreamEventTypeItemDone,
		OutputIndex: lo.ToPtr(call.outputIndex),
		Item: &responses.Item{
			ID:        call.id,
			Type:      responses.ItemTypeFunctionCall,
			Status:    lo.ToPtr(responses.StatusCompleted),
			CallID:    call.callID,
			Name:      call.name,
			Arguments: call.args.String(),
		},
	})

	s.checkpoint()
}

func (s *ResponseStream) lookupCall(callID string) *functionCall {
	if callID != "" {
		if call, ok := s.callsByID[callID]; ok {
			return call
		}
	}

	return s.currentCall
}

func (s *ResponseStream) handleMessageDone(event *llm.Event) {
	if s.msgOpen {
		text := s.text.String()

		s.push(&responses.StreamEvent{
			Type:         responses.StreamEventTypeOutputTextDone,
			ItemID:       lo.ToPtr(s.msgID),
			OutputIndex:  lo.ToPtr(s.msgIndex),
			ContentIndex: lo.ToPtr(0),
			Text:         lo.ToPtr(text),
		})

		s.push(&responses.StreamEvent{
			Type:         responses.StreamEventTypeContentPartDone,
			ItemID:       lo.ToPtr(s.msgID),
			OutputIndex:  lo.ToPtr(s.msgIndex),
			ContentIndex: lo.ToPtr(0),
			Part:         &responses.ContentPart{Type: responses.ItemTypeOutputText, Text: lo.ToPtr(text)},
		})

		item := newMessageItem(s.msgID, text, responses.StatusCompleted)

		s.push(&responses.StreamEvent{
			Type:        responses.StreamEventTypeItemDone,
			OutputIndex: lo.ToPtr(s.msgIndex),
			Item:        &item,
		})
	}

	final := *s.response
	final.Status = responses.StatusCompleted
	final.Output = s.outputItems(responses.StatusCompleted)

	if event.Usage != nil {
		final.Usage = projectUsage(event.Usage)
	}

	if s.check != nil {
		s.check.Stop()
	}

	if s.storing {
		s.orch.persistTerminal(s.writeCtx, s.response.ID, responses.StatusCompleted,
			string(xjson.MustMarshal(final.Output)), usageJSON(final.Usage), nil, nil)
	}

	s.push(&responses.StreamEvent{
		Type:     responses.StreamEventTypeResponseCompleted,
		Response: &final,
	})

	s.done = true
}

// finishUpstream handles the upstream iterator ending: normally because the
// terminal event already ran, otherwise abort or failure.
func (s *ResponseStream) finishUpstream(err error) {
	if s.check != nil {
		s.check.Stop()
	}

	s.done = true

	if err == nil {
		return
	}

	if llm.IsAbort(err) {
		// Client abort: persist what accumulated, no further typed events.
		if s.storing {
			s.orch.persistTerminal(s.writeCtx, s.response.ID, responses.StatusIncomplete,
				string(xjson.MustMarshal(s.outputItems(responses.StatusIncomplete))), "",
				nil, &responses.IncompleteDetails{Reason: "interrupted"})
		}

		return
	}

	log.Error(s.writeCtx, "response stream failed",
		log.String("response_id", s.response.ID), log.Cause(err))

	respErr := responseError(err)

	if s.storing {
		s.orch.persistTerminal(s.writeCtx, s.response.ID, responses.StatusFailed, "", "", respErr, nil)
	}

	s.push(&responses.StreamEvent{
		Type: responses.StreamEventTypeError,
		Error: &responses.StreamError{
			Type:    "server_error",
			Message: respErr.Message,
		},
	})

	failed := *s.response
	failed.Status = responses.StatusFailed
	failed.Output = []responses.Item{}
	failed.Error = respErr

	s.push(&responses.StreamEvent{
		Type:     responses.StreamEventTypeResponseFailed,
		Response: &failed,
	})
}

// outputItems builds the output array in output-index order, with
// accumulated thinking inserted at the head as a reasoning item.
// messageStatus applies to a still-open message item.
func (s *ResponseStream) outputItems(messageStatus string) []responses.Item {
	ordered := make([]responses.Item, s.nextIndex)

	if s.msgOpen {
		ordered[s.msgIndex] = newMessageItem(s.msgID, s.text.String(), messageStatus)
	}

	for _, call := range s.calls {
		status := responses.StatusCompleted
		if !call.done {
			status = responses.StatusInProgress
		}

		ordered[call.outputIndex] = responses.Item{
			ID:        call.id,
			Type:      responses.ItemTypeFunctionCall,
			Status:    lo.ToPtr(status),
			CallID:    call.callID,
			Name:      call.name,
			Arguments: call.args.String(),
		}
	}

	items := make([]responses.Item, 0, s.nextIndex+1)

	if s.thinking.Len() > 0 {
		items = append(items, newReasoningItem(s.thinking.String()))
	}

	return append(items, ordered...)
}

func (s *ResponseStream) checkpoint() {
	if s.check == nil {
		return
	}

	s.check.Note(string(xjson.MustMarshal(s.outputItems(responses.StatusInProgress))))
}

func (s *ResponseStream) Current() *responses.StreamEvent {
	return s.current
}

// Err is nil on abort and on projected failures; both end the stream cleanly
// so the handler can close with the [DONE] sentinel.
func (s *ResponseStream) Err() error {
	return s.err
}

func (s *ResponseStream) Close() error {
	if s.check != nil {
		s.check.Stop()
	}

	return s.upstream.Close()
}

// persistTerminal writes a terminal row under the live-status guard.
func (o *Orchestrator) persistTerminal(
	ctx context.Context,
	id string,
	status string,
	outputJSON string,
	usage string,
	respErr *responses.Error,
	incomplete *responses.IncompleteDetails,
) {
	record := &store.ResponseRecord{
		ID:          id,
		Status:      status,
		OutputItems: outputJSON,
		Usage:       usage,
		CompletedAt: lo.ToPtr(time.Now()),
	}

	if respErr != nil {
		record.Error = string(xjson.MustMarshal(respErr))
	}

	if incomplete != nil {
		record.IncompleteDetails = string(xjson.MustMarshal(incomplete))
	}

	if err := o.store.Finish(ctx, record); err != nil {
		log.Error(ctx, "failed to persist terminal response",
			log.String("response_id", id), log.String("status", status), log.Cause(err))
	}
}

func usageJSON(usage *responses.Usage) string {
	if usage == nil {
		return ""
	}

	return string(xjson.MustMarshal(usage))
}
