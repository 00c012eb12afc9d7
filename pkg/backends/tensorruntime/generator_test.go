package tensorruntime

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/onlocal-gateway/pkg/providerutils/streaming"
)

func newGeneratorFromSSE(body string) *Generator {
	return &Generator{
		parser: streaming.NewSSEParser(strings.NewReader(body)),
		closer: io.NopCloser(strings.NewReader("")),
	}
}

func TestGenerator_Next_DecodesTextDeltas(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"
	g := newGeneratorFromSSE(body)

	chunk1, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hel", chunk1.Text)

	chunk2, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lo", chunk2.Text)

	_, ok, err = g.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerator_Next_DecodesToolCalls(t *testing.T) {
	body := `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"get_weather","arguments":"{\"city\":\"Kyoto\"}"}}]}}]}` + "\n\n" +
		"data: [DONE]\n\n"
	g := newGeneratorFromSSE(body)

	chunk, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, chunk.ToolCalls, 1)
	assert.Equal(t, "get_weather", chunk.ToolCalls[0].Name)
	assert.JSONEq(t, `{"city":"Kyoto"}`, chunk.ToolCalls[0].Arguments)
}

func TestGenerator_Next_DecodesUsage(t *testing.T) {
	body := `data: {"choices":[{"delta":{}}],"usage":{"prompt_tokens":7,"completion_tokens":3}}` + "\n\n" +
		"data: [DONE]\n\n"
	g := newGeneratorFromSSE(body)

	chunk, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, chunk.PromptTokens)
	require.NotNil(t, chunk.CompletionTokens)
	assert.Equal(t, 7, *chunk.PromptTokens)
	assert.Equal(t, 3, *chunk.CompletionTokens)
}

func TestGenerator_Next_EOFWithoutDoneMarker(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n"
	g := newGeneratorFromSSE(body)

	_, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerator_Next_SkipsEmptyChoicesEvents(t *testing.T) {
	body := "data: {\"choices\":[]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n" +
		"data: [DONE]\n\n"
	g := newGeneratorFromSSE(body)

	chunk, ok, err := g.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ok", chunk.Text)
}

func TestGenerator_Next_MalformedJSONIsInternalError(t *testing.T) {
	body := "data: {not json\n\n"
	g := newGeneratorFromSSE(body)

	_, ok, err := g.Next()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestGenerator_Close(t *testing.T) {
	g := newGeneratorFromSSE("data: [DONE]\n\n")
	assert.NoError(t, g.Close())
}

func TestGenerator_Close_NilCloserIsNoOp(t *testing.T) {
	g := &Generator{parser: streaming.NewSSEParser(strings.NewReader(""))}
	assert.NoError(t, g.Close())
}

func TestNew_DefaultsBaseURL(t *testing.T) {
	b := New(Config{})
	require.NotNil(t, b)
}
