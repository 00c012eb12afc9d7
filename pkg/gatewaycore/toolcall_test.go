package gatewaycore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
)

func feedAll(tr *ToolCallTransducer, pieces ...string) []ToolCallEvent {
	var events []ToolCallEvent
	for _, p := range pieces {
		r := tr.Feed(p)
		events = append(events, r.Events...)
	}
	return events
}

func argsFromEvents(t *testing.T, events []ToolCallEvent) map[string]interface{} {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventClose {
			var m map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(events[i].FinalArguments), &m))
			return m
		}
	}
	t.Fatal("no EventClose found")
	return nil
}

func TestToolCallTransducer_SnakeCaseRemap(t *testing.T) {
	tools := []chatapi.ToolSchema{{
		Type: "function",
		Function: chatapi.ToolFunctionSchema{
			Name:       "get_weather",
			Parameters: json.RawMessage(`{"type":"object","properties":{"cityName":{"type":"string"}}}`),
		},
	}}
	remapper := NewKeyRemapper(tools, false)
	tr := NewToolCallTransducer(remapper)

	events := feedAll(tr,
		"before ",
		"<tool_call><function=get_weather><parameter=city_name>\nParis\n</parameter></tool_call>",
		" after")

	args := argsFromEvents(t, events)
	assert.Equal(t, "Paris", args["cityName"])
}

func TestToolCallTransducer_EmptyParameterValueDedup(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	tr := NewToolCallTransducer(remapper)

	events := feedAll(tr,
		"<tool_call><function=search><parameter=query>\n\n</parameter><parameter=query>\nreal value\n</parameter></tool_call>")

	args := argsFromEvents(t, events)
	// The first occurrence strips to empty and is skipped; the transducer
	// does not dedup-block the key since nothing was actually emitted for
	// it, so the second (non-empty) occurrence is what survives.
	assert.Equal(t, "real value", args["query"])
}

func TestToolCallTransducer_SplitAcrossPieces(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	tr := NewToolCallTransducer(remapper)

	events := feedAll(tr,
		"<tool_call><function=get_",
		"weather><parameter=city>\nTokyo",
		"\n</parameter></tool_call>")

	args := argsFromEvents(t, events)
	assert.Equal(t, "Tokyo", args["city"])

	var opened bool
	for _, ev := range events {
		if ev.Kind == EventOpen {
			opened = true
			assert.Equal(t, "get_weather", ev.Name)
		}
	}
	assert.True(t, opened)
}

func TestToolCallTransducer_SalvageOnUnterminatedTrailingParameter(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	tr := NewToolCallTransducer(remapper)

	tr.Feed("<tool_call><function=get_weather><parameter=city>\nBerlin")
	require.True(t, tr.InCall())

	events := tr.Salvage()
	require.False(t, tr.InCall())

	args := argsFromEvents(t, events)
	assert.Equal(t, "Berlin", args["city"])
}

func TestToolCallTransducer_NoParamsYieldsEmptyObject(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	tr := NewToolCallTransducer(remapper)

	events := feedAll(tr, "<tool_call><function=ping></tool_call>")
	args := argsFromEvents(t, events)
	assert.Empty(t, args)
}

func TestNeedsFallback_PlainTextNeedsNoFallback(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	tr := NewToolCallTransducer(remapper)

	// Text with no tool-call markup of any form never asks for the
	// fallback parser.
	tr.Feed("plain text with no markup at all")
	assert.False(t, tr.NeedsFallback())
}

func TestNeedsFallback_BareJSONPrefix(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	tr := NewToolCallTransducer(remapper)
	tr.Feed(`{"name": "get_weather", "arguments": {"city": "Rome"}}`)
	assert.True(t, tr.NeedsFallback())
}

func TestParseFallbackToolCalls_ToolCallTag(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	text := "<tool_call><function=get_weather><parameter=city>\nOslo\n</parameter></tool_call>"
	calls := ParseFallbackToolCalls(text, remapper)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"Oslo"}`, calls[0].Arguments)
}

func TestParseFallbackToolCalls_BareJSONForm(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	text := `{"name": "get_weather", "arguments": {"city": "Lagos"}}`
	calls := ParseFallbackToolCalls(text, remapper)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"Lagos"}`, calls[0].Arguments)
}

func TestParseFallbackToolCalls_BareJSONTruncatedArgumentsRepaired(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	// A detokenizer-truncated arguments object: incomplete string value.
	text := `{"name": "get_weather", "arguments": {"city": "Lag`
	calls := ParseFallbackToolCalls(text, remapper)
	// The open string and the missing closing brace are repaired, keeping
	// the value text that did arrive.
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.JSONEq(t, `{"city":"Lag"}`, calls[0].Arguments)
}

func TestParseFallbackToolCalls_NoMatches(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	calls := ParseFallbackToolCalls("just plain assistant text", remapper)
	assert.Empty(t, calls)
}

func TestParseToolCallBody_DedupsRepeatedKey(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	body := "<parameter=city>\nParis\n</parameter><parameter=city>\nBerlin\n</parameter>"
	got := ParseToolCallBody("get_weather", body, remapper)
	assert.JSONEq(t, `{"city":"Paris"}`, got)
}

func TestParseToolCallBody_Empty(t *testing.T) {
	remapper := NewKeyRemapper(nil, false)
	assert.Equal(t, "{}", ParseToolCallBody("ping", "", remapper))
}
