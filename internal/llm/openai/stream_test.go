package openai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/pkg/httpclient"
	"github.com/prismhub/prism/internal/pkg/streams"
)

func chunk(data string) *httpclient.StreamEvent {
	return &httpclient.StreamEvent{Data: []byte(data)}
}

func drain(t *testing.T, stream streams.Stream[*llm.Event]) []*llm.Event {
	t.Helper()

	events, err := streams.All[*llm.Event](stream)
	require.NoError(t, err)

	return events
}

func TestEventStream_Text(t *testing.T) {
	upstream := streams.Of(
		chunk(`{"choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"content":" world"}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`),
		chunk(`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":5,"prompt_tokens_details":{"cached_tokens":2}}}`),
		chunk(`[DONE]`),
	)

	events := drain(t, newEventStream(upstream, false))
	require.Len(t, events, 3)

	require.Equal(t, llm.EventTextDelta, events[0].Type)
	require.Equal(t, "Hello", events[0].Delta)
	require.Equal(t, " world", events[1].Delta)

	done := events[2]
	require.Equal(t, llm.EventMessageDone, done.Type)
	require.Equal(t, llm.StopReasonStop, done.StopReason)
	require.EqualValues(t, 10, done.Usage.InputTokens)
	require.EqualValues(t, 5, done.Usage.OutputTokens)
	require.EqualValues(t, 2, done.Usage.CacheReadTokens)
}

func TestEventStream_ToolCallFragments(t *testing.T) {
	upstream := streams.Of(
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"NYC\"}"}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`),
		chunk(`[DONE]`),
	)

	events := drain(t, newEventStream(upstream, false))
	require.Len(t, events, 5)

	require.Equal(t, llm.EventToolCallStart, events[0].Type)
	require.Equal(t, "call_1", events[0].CallID)
	require.Equal(t, "get_weather", events[0].Name)

	require.Equal(t, llm.EventToolCallDelta, events[1].Type)
	require.Equal(t, llm.EventToolCallDelta, events[2].Type)

	// The call closes when the stream finishes.
	require.Equal(t, llm.EventToolCallDone, events[3].Type)
	require.Equal(t, `{"city":"NYC"}`, events[3].Arguments)

	require.Equal(t, llm.EventMessageDone, events[4].Type)
	require.Equal(t, llm.StopReasonToolUse, events[4].StopReason)
}

func TestEventStream_SecondToolCallClosesFirst(t *testing.T) {
	upstream := streams.Of(
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":"{}"}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"get_time","arguments":"{}"}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`),
		chunk(`[DONE]`),
	)

	events := drain(t, newEventStream(upstream, false))

	types := make([]llm.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}

	require.Equal(t, []llm.EventType{
		llm.EventToolCallStart,
		llm.EventToolCallDelta,
		llm.EventToolCallDone,
		llm.EventToolCallStart,
		llm.EventToolCallDelta,
		llm.EventToolCallDone,
		llm.EventMessageDone,
	}, types)

	require.Equal(t, "call_1", events[2].CallID)
	require.Equal(t, "call_2", events[5].CallID)
}

func TestEventStream_Reasoning(t *testing.T) {
	upstream := streams.Of(
		chunk(`{"choices":[{"index":0,"delta":{"reasoning_content":"Let me "}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"reasoning_content":"think."}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"content":"Answer"}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`),
		chunk(`[DONE]`),
	)

	events := drain(t, newEventStream(upstream, false))
	require.Len(t, events, 5)

	require.Equal(t, llm.EventThinkingDelta, events[0].Type)
	require.Equal(t, llm.EventThinkingDelta, events[1].Type)
	require.Equal(t, llm.EventTextDelta, events[2].Type)

	require.Equal(t, llm.EventThinkingDone, events[3].Type)
	require.Equal(t, "Let me think.", events[3].Text)

	require.Equal(t, llm.EventMessageDone, events[4].Type)
}

func TestEventStream_StructuredOutput(t *testing.T) {
	upstream := streams.Of(
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"__json_response__","arguments":"{\"ok\":"}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"true}"}}]}}]}`),
		chunk(`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`),
		chunk(`[DONE]`),
	)

	events := drain(t, newEventStream(upstream, true))
	require.Len(t, events, 3)

	require.Equal(t, llm.EventTextDelta, events[0].Type)
	require.Equal(t, `{"ok":`, events[0].Delta)
	require.Equal(t, llm.EventTextDelta, events[1].Type)

	require.Equal(t, llm.EventMessageDone, events[2].Type)
	require.Equal(t, llm.StopReasonEndTurn, events[2].StopReason)
}

func TestEventStream_MissingDoneStillTerminates(t *testing.T) {
	upstream := streams.Of(
		chunk(`{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`),
	)

	events := drain(t, newEventStream(upstream, false))
	require.Equal(t, llm.EventMessageDone, events[len(events)-1].Type)
}

func TestEventStream_BlankLinesIgnored(t *testing.T) {
	upstream := streams.Of(
		chunk(``),
		chunk(`{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`),
		chunk(` `),
		chunk(`[DONE]`),
	)

	events := drain(t, newEventStream(upstream, false))
	require.Len(t, events, 2)
}
