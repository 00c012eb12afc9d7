// Package gatewaycore implements the streaming protocol-translation
// pipeline: tag-aware reasoning extraction, incremental tool-call
// transduction, argument-key remapping, and the finish-reason/usage
// accounting shared by the streaming and buffered response paths.
package gatewaycore

const (
	// DefaultToolCallStartTag and DefaultToolCallEndTag bound the markup
	// region the transducer scans for <function=...><parameter=...> bodies.
	DefaultToolCallStartTag = "<tool_call>"
	DefaultToolCallEndTag   = "</tool_call>"

	thinkStartTag = "<think>"
	thinkEndTag   = "</think>"
)

// TokenLogprob is one resolved logprob entry attached to a generated token.
type TokenLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// VendorToolCall is a tool call the generator parsed itself, bypassing
// text-based transduction entirely.
type VendorToolCall struct {
	Index     int
	Name      string
	Arguments string
}

// StreamChunk is one piece produced by a Generator: a text fragment plus
// optional resolved logprobs, vendor-parsed tool calls, and authoritative
// token counts.
type StreamChunk struct {
	Text             string
	Logprobs         []TokenLogprob
	ToolCalls        []VendorToolCall
	PromptTokens     *int
	CompletionTokens *int
}

// Generator produces a lazy, finite sequence of StreamChunk values for one
// request. Implementations own model loading, sampling, and tokenization;
// the pipeline only consumes text pieces, logprobs, and usage counts.
type Generator interface {
	// Next returns the next chunk, or ok=false when the stream is
	// exhausted. An error here aborts the pipeline.
	Next() (chunk StreamChunk, ok bool, err error)
	// Close releases any resources held by the generator.
	Close() error
}
