// Command gateway runs the on-device chat-completions gateway: an
// OpenAI-compatible HTTP surface fronting the local tensor-runtime engine
// and the platform foundation-model stub.
package main

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/digitallysavvy/onlocal-gateway/internal/httpapi"
	"github.com/digitallysavvy/onlocal-gateway/pkg/backends/tensorruntime"
	"github.com/digitallysavvy/onlocal-gateway/pkg/registry"
	"github.com/digitallysavvy/onlocal-gateway/pkg/telemetry"
)

func main() {
	cfg := httpapi.ConfigFromEnv()

	// Register the SDK tracer provider as the global provider. Request spans
	// come from it only when the telemetry Settings are enabled;
	// DefaultSettings leaves them disabled, so the request path then uses a
	// no-op tracer. No exporter is wired: nothing outside the process reads
	// these spans today, but downstream consumers (a batcher + OTLP
	// exporter) can be added here without touching the request path.
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	reg := registry.New()
	if cfg.TensorRuntimeModel != "" {
		baseURL := cfg.TensorRuntimeBaseURL
		if baseURL == "" {
			baseURL = tensorruntime.DefaultBaseURL
		}
		backend := tensorruntime.New(tensorruntime.Config{BaseURL: baseURL})
		reg.RegisterTensorRuntime(cfg.TensorRuntimeModel, backend)
		log.Printf("registered tensor-runtime model %q at %s", cfg.TensorRuntimeModel, baseURL)
	}

	settings := telemetry.DefaultSettings()

	r := httpapi.NewRouter(cfg, reg, settings)

	log.Printf("🚀 gateway starting on port %s", cfg.Port)
	log.Printf("  POST /v1/chat/completions - OpenAI-compatible chat completions")
	log.Printf("  GET  /health               - health check")

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
