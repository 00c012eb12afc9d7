// Package registry resolves a chat-completions request's model id to the
// backend that should serve it: the platform foundation model, or one of
// the tensor-runtime models this gateway has been configured with.
package registry

import (
	"context"
	"sync"

	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/backends/foundation"
	"github.com/digitallysavvy/onlocal-gateway/pkg/backends/tensorruntime"
	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
	"github.com/digitallysavvy/onlocal-gateway/pkg/gatewaycore"
)

// FoundationModelID is the reserved model name routed to the foundation
// stub backend.
const FoundationModelID = "foundation"

// Dialer opens a Generator for one request against a specific backend.
type Dialer func(ctx context.Context, model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error)

// Registry maps model ids to the backend that serves them.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Dialer
}

// New returns an empty registry with the foundation stub pre-registered.
func New() *Registry {
	r := &Registry{backends: make(map[string]Dialer)}
	r.RegisterModel(FoundationModelID, func(ctx context.Context, model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
		return foundation.New(), nil
	})
	return r
}

// RegisterModel associates a model id with a Dialer.
func (r *Registry) RegisterModel(model string, dial Dialer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[model] = dial
}

// RegisterTensorRuntime registers a tensor-runtime-backed model id against
// a configured Backend.
func (r *Registry) RegisterTensorRuntime(model string, backend *tensorruntime.Backend) {
	r.RegisterModel(model, func(ctx context.Context, m string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
		return backend.Dial(ctx, m, req, params)
	})
}

// Resolve dials the Generator for req.Model, returning a not-found gateway
// error when the model is unregistered.
func (r *Registry) Resolve(ctx context.Context, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
	model := req.Model
	r.mu.RLock()
	dial, ok := r.backends[model]
	r.mu.RUnlock()
	if !ok {
		return nil, gatewayerr.NotFound("model %q is not available on this gateway", model)
	}
	return dial(ctx, model, req, params)
}

// ListModels returns every registered model id.
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}
