package gatewaycore

import (
	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
)

// ServerDefaults holds the server-level fallback values for sampling knobs
// a request may omit, and the hard caps the server enforces regardless of
// what a request asks for.
type ServerDefaults struct {
	Temperature       *float64
	TopP              *float64
	TopK              *int
	MinP              *float64
	PresencePenalty   *float64
	RepetitionPenalty *float64
	Seed              *int64
	MaxTokens         *int
	MaxLogprobs       int
}

// DefaultServerDefaults mirrors the hard-coded fallback values when no
// server configuration overrides them.
func DefaultServerDefaults() ServerDefaults {
	return ServerDefaults{MaxLogprobs: 20}
}

// EffectiveParams is the fully resolved set of sampling knobs used to
// build a backend generation request.
type EffectiveParams struct {
	Temperature       *float64
	TopP              *float64
	TopK              *int
	MinP              *float64
	PresencePenalty   *float64
	RepetitionPenalty *float64
	Seed              *int64
	MaxTokens         int
	TopLogprobs       *int
}

// Resolve merges a request's sampling knobs over the server defaults,
// falling back to a hard-coded constant only for max_tokens, and rejects a
// top_logprobs value over the server's configured maximum.
func Resolve(req *chatapi.ChatRequest, defaults ServerDefaults) (EffectiveParams, error) {
	p := EffectiveParams{
		Temperature:       firstNonNilFloat(req.Temperature, defaults.Temperature),
		TopP:              firstNonNilFloat(req.TopP, defaults.TopP),
		TopK:              firstNonNilInt(req.TopK, defaults.TopK),
		MinP:              firstNonNilFloat(req.MinP, defaults.MinP),
		PresencePenalty:   firstNonNilFloat(req.PresencePenalty, defaults.PresencePenalty),
		RepetitionPenalty: firstNonNilFloat(req.EffectiveRepetitionPenalty(), defaults.RepetitionPenalty),
		Seed:              firstNonNilInt64(req.Seed, defaults.Seed),
		MaxTokens:         resolveMaxTokens(req.EffectiveMaxTokens(), defaults.MaxTokens),
	}

	if req.TopLogprobs != nil {
		if *req.TopLogprobs > defaults.MaxLogprobs {
			return p, gatewayerr.Validation(
				"top_logprobs must be <= %d. Received %d.", defaults.MaxLogprobs, *req.TopLogprobs)
		}
		p.TopLogprobs = req.TopLogprobs
	}
	return p, nil
}

func resolveMaxTokens(request, server *int) int {
	if request != nil && *request > 0 {
		return *request
	}
	if server != nil && *server > 0 {
		return *server
	}
	return 4096
}

func firstNonNilFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonNilInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonNilInt64(vals ...*int64) *int64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
