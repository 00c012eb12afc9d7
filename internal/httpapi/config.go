// Package httpapi mounts the chat-completions HTTP surface: gin routing,
// permissive CORS, request-size and rate limiting, per-request tracing and
// logging, and translation between the wire protocol and gatewaycore.
package httpapi

import (
	"os"
	"strconv"

	"github.com/digitallysavvy/onlocal-gateway/pkg/gatewaycore"
)

// Config holds the recognized server-level options, sourced from
// environment variables by cmd/gateway. No flag-parsing library is
// involved; this is plain env-var population.
type Config struct {
	// Port is the TCP port the gin server listens on.
	Port string

	// StreamingEnabled disables SSE entirely when false: every request is
	// served through the buffered path regardless of the request's
	// "stream" field.
	StreamingEnabled bool

	// RawOutput suppresses <think> extraction, leaving reasoning spans in
	// the content stream verbatim, for non-browser clients.
	RawOutput bool

	// FixToolArgs enables the heuristic argument-key remap fallback.
	FixToolArgs bool

	// VeryVerbose gates diagnostic per-delta logging.
	VeryVerbose bool

	// TensorRuntimeBaseURL is the local engine's HTTP endpoint, when one
	// is configured.
	TensorRuntimeBaseURL string

	// TensorRuntimeModel is the model id this gateway routes to the
	// tensor-runtime backend.
	TensorRuntimeModel string

	// RateLimitRPS and RateLimitBurst configure the per-process request
	// limiter protecting the local backend from overload.
	RateLimitRPS   float64
	RateLimitBurst int

	Defaults gatewaycore.ServerDefaults
}

// ConfigFromEnv populates a Config from environment variables, falling
// back to hard-coded defaults when a variable is unset.
func ConfigFromEnv() Config {
	cfg := Config{
		Port:                  envOr("PORT", "8080"),
		StreamingEnabled:      envBool("STREAMING_ENABLED", true),
		RawOutput:             envBool("RAW_OUTPUT", false),
		FixToolArgs:           envBool("FIX_TOOL_ARGS", false),
		VeryVerbose:           envBool("VERY_VERBOSE", false),
		TensorRuntimeBaseURL:  os.Getenv("TENSOR_RUNTIME_BASE_URL"),
		TensorRuntimeModel:    os.Getenv("TENSOR_RUNTIME_MODEL"),
		RateLimitRPS:          envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:        envInt("RATE_LIMIT_BURST", 20),
		Defaults:              gatewaycore.DefaultServerDefaults(),
	}

	cfg.Defaults.Temperature = envOptFloat("DEFAULT_TEMPERATURE")
	cfg.Defaults.TopP = envOptFloat("DEFAULT_TOP_P")
	cfg.Defaults.TopK = envOptInt("DEFAULT_TOP_K")
	cfg.Defaults.MinP = envOptFloat("DEFAULT_MIN_P")
	cfg.Defaults.PresencePenalty = envOptFloat("DEFAULT_PRESENCE_PENALTY")
	cfg.Defaults.RepetitionPenalty = envOptFloat("DEFAULT_REPETITION_PENALTY")
	cfg.Defaults.MaxTokens = envOptInt("DEFAULT_MAX_TOKENS")
	if v := envOptInt("MAX_LOGPROBS"); v != nil {
		cfg.Defaults.MaxLogprobs = *v
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOptInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envOptFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
