// Package chatapi defines the OpenAI-compatible chat-completions wire
// shapes consumed and produced by the gateway: requests, streaming chunks,
// buffered responses, and error envelopes.
package chatapi

import "encoding/json"

// Message is one entry in a ChatRequest's messages array.
type Message struct {
	Role       string     `json:"role" binding:"required"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolFunctionSchema describes a callable function's name and JSON-schema
// parameters. The declared property names are the authority consulted by
// the argument-key remapper.
type ToolFunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolSchema is one entry in a request's tools array.
type ToolSchema struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

// StopSequences accepts either a single string or an array of strings for
// the "stop" field, matching the OpenAI wire format's permissive shape.
type StopSequences []string

// UnmarshalJSON accepts a bare string, an array of strings, or null.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StopSequences{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ChatRequest is the OpenAI-compatible subset of the chat-completions
// request body this gateway accepts.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages" binding:"required,min=1"`
	Stream   bool      `json:"stream"`

	Temperature        *float64 `json:"temperature,omitempty"`
	TopP               *float64 `json:"top_p,omitempty"`
	TopK               *int     `json:"top_k,omitempty"`
	MinP               *float64 `json:"min_p,omitempty"`
	PresencePenalty    *float64 `json:"presence_penalty,omitempty"`
	RepetitionPenalty  *float64 `json:"repetition_penalty,omitempty"`
	FrequencyPenalty   *float64 `json:"frequency_penalty,omitempty"`
	Seed               *int64   `json:"seed,omitempty"`
	MaxTokens          *int     `json:"max_tokens,omitempty"`
	MaxCompletionToken *int     `json:"max_completion_tokens,omitempty"`

	Logprobs     bool           `json:"logprobs,omitempty"`
	TopLogprobs  *int           `json:"top_logprobs,omitempty"`
	Tools        []ToolSchema   `json:"tools,omitempty"`
	Stop         StopSequences  `json:"stop,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

// EffectiveMaxTokens returns max_tokens, falling back to the
// max_completion_tokens alias when max_tokens was not set.
func (r *ChatRequest) EffectiveMaxTokens() *int {
	if r.MaxTokens != nil {
		return r.MaxTokens
	}
	return r.MaxCompletionToken
}

// EffectiveRepetitionPenalty returns repetition_penalty, falling back to
// the frequency_penalty alias.
func (r *ChatRequest) EffectiveRepetitionPenalty() *float64 {
	if r.RepetitionPenalty != nil {
		return r.RepetitionPenalty
	}
	return r.FrequencyPenalty
}
