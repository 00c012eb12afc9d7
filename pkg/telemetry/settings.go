// Package telemetry provides the gateway's OpenTelemetry integration: a
// per-request span recording model id, token counts, and finish_reason,
// with a no-op tracer when telemetry is disabled.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures telemetry for a request.
// Telemetry is disabled by default and must be explicitly enabled.
type Settings struct {
	// IsEnabled controls whether telemetry is active. Defaults to false.
	IsEnabled bool

	// FunctionID is an identifier for grouping telemetry data by caller.
	FunctionID string

	// Metadata contains additional key-value pairs to include in telemetry spans.
	Metadata map[string]attribute.Value

	// Tracer is a custom OpenTelemetry tracer. If nil, the global tracer will be used.
	Tracer trace.Tracer
}

// DefaultSettings returns Settings with telemetry disabled.
func DefaultSettings() *Settings {
	return &Settings{
		IsEnabled: false,
		Metadata:  make(map[string]attribute.Value),
	}
}
