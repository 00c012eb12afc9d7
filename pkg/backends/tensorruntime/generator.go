// Package tensorruntime adapts a local llama.cpp/Ollama-style HTTP+SSE
// inference runtime into a gatewaycore.Generator: the lazy sequence of
// text pieces, logprobs, and usage counts the core pipeline consumes.
// Model loading, sampling, and tokenization remain the runtime's own
// concern; this package only speaks its wire protocol.
package tensorruntime

import (
	"context"
	"encoding/json"
	"io"

	internalhttp "github.com/digitallysavvy/onlocal-gateway/pkg/internal/http"
	"github.com/digitallysavvy/onlocal-gateway/pkg/internal/retry"
	"github.com/digitallysavvy/onlocal-gateway/pkg/providerutils/streaming"

	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
	"github.com/digitallysavvy/onlocal-gateway/pkg/gatewaycore"
)

// Config configures one connection to a local tensor-runtime engine.
type Config struct {
	// BaseURL is the engine's HTTP endpoint, e.g. "http://localhost:8080".
	BaseURL string
	// HTTPClient overrides the default client; mainly for tests.
	HTTPClient *internalhttp.Client
}

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8080"

// Backend dials a tensor-runtime engine to produce Generators.
type Backend struct {
	client *internalhttp.Client
}

// New returns a Backend configured against cfg.
func New(cfg Config) *Backend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = internalhttp.NewClient(internalhttp.Config{BaseURL: baseURL})
	}
	return &Backend{client: client}
}

// completionRequest is the runtime's own wire shape for a generation call.
type completionRequest struct {
	Model             string   `json:"model"`
	Messages          []rawMsg `json:"messages"`
	Stream            bool     `json:"stream"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	MinP              *float64 `json:"min_p,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	Logprobs          bool     `json:"logprobs,omitempty"`
	TopLogprobs       *int     `json:"top_logprobs,omitempty"`
}

type rawMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Dial opens a streaming generation call against the local engine and
// returns a Generator over its response. The initial connection attempt
// is retried with backoff since a freshly launched local engine process
// can take a moment to start accepting connections.
func (b *Backend) Dial(ctx context.Context, model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
	body := buildRequestBody(model, req, params)

	cfg := retry.DefaultConfig()
	cfg.ShouldRetry = retry.IsRetryable

	var respBody io.ReadCloser
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		resp, dialErr := b.client.DoStream(ctx, internalhttp.Request{
			Method: "POST",
			Path:   "/v1/chat/completions",
			Body:   body,
		})
		if dialErr != nil {
			return dialErr
		}
		respBody = resp.Body
		return nil
	})
	if err != nil {
		return nil, gatewayerr.GeneratorUnavailable(err, "tensor-runtime engine unavailable")
	}

	return &Generator{
		parser: streaming.NewSSEParser(respBody),
		closer: respBody,
	}, nil
}

func buildRequestBody(model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) completionRequest {
	msgs := make([]rawMsg, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = rawMsg{Role: m.Role, Content: m.Content}
	}
	return completionRequest{
		Model:             model,
		Messages:          msgs,
		Stream:            true,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		TopK:              params.TopK,
		MinP:              params.MinP,
		PresencePenalty:   params.PresencePenalty,
		RepetitionPenalty: params.RepetitionPenalty,
		Seed:              params.Seed,
		MaxTokens:         params.MaxTokens,
		Logprobs:          req.Logprobs,
		TopLogprobs:       params.TopLogprobs,
	}
}

// rawChunk is the shape of one SSE data payload emitted by the runtime.
type rawChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// Generator adapts the runtime's SSE stream into gatewaycore.StreamChunk
// values.
type Generator struct {
	parser *streaming.SSEParser
	closer io.Closer
}

// Next returns the next piece of generated text, or ok=false at stream
// end.
func (g *Generator) Next() (gatewaycore.StreamChunk, bool, error) {
	for {
		event, err := g.parser.Next()
		if err == io.EOF {
			return gatewaycore.StreamChunk{}, false, nil
		}
		if err != nil {
			return gatewaycore.StreamChunk{}, false, gatewayerr.Internal(err, "reading tensor-runtime stream")
		}
		if event.Data == "[DONE]" {
			return gatewaycore.StreamChunk{}, false, nil
		}
		var rc rawChunk
		if err := json.Unmarshal([]byte(event.Data), &rc); err != nil {
			return gatewaycore.StreamChunk{}, false, gatewayerr.Internal(err, "decoding tensor-runtime chunk")
		}
		if len(rc.Choices) == 0 {
			continue
		}
		delta := rc.Choices[0].Delta
		chunk := gatewaycore.StreamChunk{Text: delta.Content}
		for _, tc := range delta.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, gatewaycore.VendorToolCall{
				Index:     tc.Index,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if rc.Usage != nil {
			prompt, completion := rc.Usage.PromptTokens, rc.Usage.CompletionTokens
			chunk.PromptTokens = &prompt
			chunk.CompletionTokens = &completion
		}
		return chunk, true, nil
	}
}

// Close releases the underlying HTTP response body.
func (g *Generator) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer.Close()
}
