// Package foundation provides the stub backend for the platform
// foundation model. Real on-device foundation-model inference is out of
// scope; this package only completes the routing path so that requests
// naming "foundation" fail in a well-typed, testable way rather than
// falling through to a 404.
package foundation

import (
	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/gatewaycore"
)

// Generator always reports the foundation model as unavailable. It exists
// so pkg/registry has something to resolve "foundation" to.
type Generator struct{}

// New returns a stub foundation-model generator.
func New() *Generator { return &Generator{} }

// Next always fails with a generator-unavailable error.
func (g *Generator) Next() (gatewaycore.StreamChunk, bool, error) {
	return gatewaycore.StreamChunk{}, false, gatewayerr.GeneratorUnavailable(
		nil, "the foundation model is not available on this gateway")
}

// Close is a no-op; the stub holds no resources.
func (g *Generator) Close() error { return nil }
