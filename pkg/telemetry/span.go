package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordErrorOnSpan records an error on a span and sets the span status to error.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetBaseAttributes returns the common attributes recorded on every
// chat-completion request span: which backend served it and which model
// id was requested.
func GetBaseAttributes(
	backend string,
	modelID string,
	settings *Settings,
	headers map[string]string,
) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("gateway.backend", backend),
		attribute.String("gateway.model.id", modelID),
	}

	if settings != nil {
		if settings.FunctionID != "" {
			attrs = append(attrs, attribute.String("gateway.telemetry.functionId", settings.FunctionID))
		}

		for key, value := range settings.Metadata {
			attrs = append(attrs, attribute.KeyValue{
				Key:   attribute.Key("gateway.telemetry.metadata." + key),
				Value: value,
			})
		}
	}

	for key, value := range headers {
		// Skip authorization and api key headers
		if key == "Authorization" || key == "x-api-key" || key == "api-key" {
			continue
		}
		attrs = append(attrs, attribute.String("gateway.request.headers."+key, value))
	}

	return attrs
}
