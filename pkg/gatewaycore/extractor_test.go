package gatewaycore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(results ...ExtractResult) (content, reasoning string) {
	for _, r := range results {
		if r.Content != nil {
			content += *r.Content
		}
		if r.Reasoning != nil {
			reasoning += *r.Reasoning
		}
	}
	return
}

func TestThinkExtractor_SplitAcrossPieces(t *testing.T) {
	e := NewThinkExtractor()
	r1 := e.Feed("Hello <thi")
	r2 := e.Feed("nk>secret</thi")
	r3 := e.Feed("nk> world")
	r4 := e.Flush(false)

	content, reasoning := drain(r1, r2, r3, r4)
	assert.Equal(t, "Hello  world", content)
	assert.Equal(t, "secret", reasoning)
}

func TestThinkExtractor_SinglePiece(t *testing.T) {
	e := NewThinkExtractor()
	r := e.Feed("before <think>hidden</think> after")
	content, reasoning := drain(r, e.Flush(false))
	assert.Equal(t, "before  after", content)
	assert.Equal(t, "hidden", reasoning)
}

func TestThinkExtractor_NoTags(t *testing.T) {
	e := NewThinkExtractor()
	r1 := e.Feed("just plain ")
	r2 := e.Feed("text")
	flushed := e.Flush(false)

	content, _ := drain(r1, r2, flushed)
	assert.Equal(t, "just plain text", content)
}

func TestThinkExtractor_FlushRetainsResidual(t *testing.T) {
	e := NewThinkExtractor()
	r := e.Feed("tail <thi")
	// The last len("<think>")-1 bytes are held back whether or not they
	// begin a tag.
	content, _ := drain(r)
	assert.Equal(t, "tai", content)

	flushed := e.Flush(false)
	require.NotNil(t, flushed.Content)
	assert.Equal(t, "l <thi", *flushed.Content)
}

func TestThinkExtractor_FlushTrimsOnlyWhenRequested(t *testing.T) {
	e := NewThinkExtractor()
	fed := e.Feed("content with trailing space   ")

	untrimmed := e.Flush(false)
	require.NotNil(t, untrimmed.Content)
	content, _ := drain(fed, untrimmed)
	assert.Equal(t, "content with trailing space   ", content)
}

func TestThinkExtractor_FlushTrimsWhenRequestedSeparateInstance(t *testing.T) {
	e := NewThinkExtractor()
	fed := e.Feed("content with trailing space   ")

	trimmed := e.Flush(true)
	require.NotNil(t, trimmed.Content)
	content, _ := drain(fed, trimmed)
	assert.Equal(t, "content with trailing space", content)
}

func TestThinkExtractor_FlushInsideReasoningAttributesToReasoning(t *testing.T) {
	e := NewThinkExtractor()
	fed := e.Feed("<think>unterminated reasoning")
	flushed := e.Flush(false)
	require.NotNil(t, flushed.Reasoning)
	_, reasoning := drain(fed, flushed)
	assert.Equal(t, "unterminated reasoning", reasoning)
	assert.Nil(t, flushed.Content)
}

func TestThinkExtractor_EmptyFlushReturnsEmptyResult(t *testing.T) {
	e := NewThinkExtractor()
	flushed := e.Flush(true)
	assert.Nil(t, flushed.Content)
	assert.Nil(t, flushed.Reasoning)
}

func TestThinkExtractor_MultipleThinkSpans(t *testing.T) {
	e := NewThinkExtractor()
	r := e.Feed("a<think>one</think>b<think>two</think>c")
	content, reasoning := drain(r, e.Flush(false))
	assert.Equal(t, "abc", content)
	assert.Equal(t, "onetwo", reasoning)
}
