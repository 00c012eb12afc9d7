package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
	"github.com/digitallysavvy/onlocal-gateway/pkg/gatewaycore"
	"github.com/digitallysavvy/onlocal-gateway/pkg/providerutils/streaming"
	"github.com/digitallysavvy/onlocal-gateway/pkg/registry"
	"github.com/digitallysavvy/onlocal-gateway/pkg/telemetry"
)

// Server wires the registry, server-level defaults, and telemetry
// settings a chat-completions request is handled against.
type Server struct {
	cfg      Config
	reg      *registry.Registry
	settings *telemetry.Settings
}

// NewServer builds a Server ready to be mounted with NewRouter.
func NewServer(cfg Config, reg *registry.Registry, settings *telemetry.Settings) *Server {
	if settings == nil {
		settings = telemetry.DefaultSettings()
	}
	return &Server{cfg: cfg, reg: reg, settings: settings}
}

// handleChatCompletions implements POST /v1/chat/completions for both the
// streaming and buffered paths.
func (s *Server) handleChatCompletions(c *gin.Context) {
	var req chatapi.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, gatewayerr.Validation("%s", err.Error()))
		return
	}
	if len(req.Messages) == 0 {
		writeError(c, gatewayerr.Validation("messages must not be empty"))
		return
	}

	tracer := telemetry.GetTracer(s.settings)
	ctx, span := tracer.Start(c.Request.Context(), "chat.completions")
	defer span.End()
	span.SetAttributes(telemetry.GetBaseAttributes("gateway", req.Model, s.settings, nil)...)

	params, err := gatewaycore.Resolve(&req, s.cfg.Defaults)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		writeError(c, err)
		return
	}

	gen, err := s.reg.Resolve(ctx, &req, params)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		writeError(c, err)
		return
	}
	defer gen.Close()

	remapper := gatewaycore.NewKeyRemapper(req.Tools, s.cfg.FixToolArgs)
	pipeline := gatewaycore.NewPipeline(req.Model, params, remapper, s.cfg.RawOutput)

	streamRequested := req.Stream && s.cfg.StreamingEnabled
	if streamRequested {
		s.runStreaming(c, span, pipeline, gen)
		return
	}
	s.runBuffered(c, span, pipeline, gen)
}

func (s *Server) runBuffered(c *gin.Context, span trace.Span, pipeline *gatewaycore.Pipeline, gen gatewaycore.Generator) {
	resp, err := pipeline.RunBuffered(gen)
	if err != nil {
		writeError(c, err)
		return
	}
	span.SetAttributes(
		attribute.Int("gateway.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("gateway.usage.completion_tokens", resp.Usage.CompletionTokens),
		attribute.String("gateway.finish_reason", string(resp.Choices[0].FinishReason)),
	)
	if s.cfg.VeryVerbose {
		log.Printf("chat.completions buffered: model=%s prompt_tokens=%d completion_tokens=%d finish_reason=%s",
			resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Choices[0].FinishReason)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) runStreaming(c *gin.Context, span trace.Span, pipeline *gatewaycore.Pipeline, gen gatewaycore.Generator) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sseWriter := streaming.NewSSEWriter(w)

	sink := func(chunk chatapi.ChatCompletionChunk) error {
		if s.cfg.VeryVerbose {
			if data, err := json.Marshal(chunk); err == nil {
				log.Printf("chat.completions delta: %s", data)
			}
		}
		if err := sseWriter.WriteJSON(chunk); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	if err := pipeline.RunStreaming(gen, sink); err != nil {
		// Headers are already sent: surface the failure as a visible
		// content delta, followed by its own terminal chunk carrying
		// finish_reason/usage/timings, rather than an HTTP error status.
		// If the sink itself failed (client disconnect), these writes and
		// the [DONE] below simply fail too.
		gwErr := gatewayerr.Wrap(err)
		_ = sink(errorDeltaChunk(pipeline, gwErr))
		_ = sink(pipeline.FinishedChunk(pipeline.Created(), false))
		logStreamingError(pipeline, gwErr)
	}

	_ = sseWriter.WriteRawDone()
}

// errorDeltaChunk builds the visible-content-delta chunk an error after
// SSE headers have already been written must be surfaced as. finish_reason
// and usage are carried on the separate chunk FinishedChunk builds, not
// here, so every stream still ends with exactly one terminal chunk.
func errorDeltaChunk(pipeline *gatewaycore.Pipeline, gwErr *gatewayerr.Error) chatapi.ChatCompletionChunk {
	text := gwErr.StreamingPrefix() + ": " + gwErr.Message
	return chatapi.ChatCompletionChunk{
		ID:      pipeline.ID,
		Object:  "chat.completion.chunk",
		Created: pipeline.Created(),
		Model:   pipeline.Model,
		Choices: []chatapi.ChunkChoice{{
			Index: 0,
			Delta: chatapi.Delta{Content: &text},
		}},
	}
}

// logStreamingError emits the one-line token/s summary for a stream that
// ended in an error or client cancellation.
func logStreamingError(pipeline *gatewaycore.Pipeline, gwErr *gatewayerr.Error) {
	elapsed := pipeline.Elapsed()
	tokens := pipeline.CompletionTokens()
	tps := 0.0
	if elapsed > 0 {
		tps = float64(tokens) / elapsed.Seconds()
	}
	log.Printf("chat.completions streaming error: model=%s completion_tokens=%d elapsed=%s tokens/s=%.1f err=%v",
		pipeline.Model, tokens, elapsed.Round(time.Millisecond), tps, gwErr)
}
