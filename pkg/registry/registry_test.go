package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitallysavvy/onlocal-gateway/internal/gatewayerr"
	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
	"github.com/digitallysavvy/onlocal-gateway/pkg/gatewaycore"
)

func TestNew_PreRegistersFoundation(t *testing.T) {
	t.Parallel()

	r := New()
	require.Contains(t, r.ListModels(), FoundationModelID)

	gen, err := r.Resolve(context.Background(), &chatapi.ChatRequest{Model: FoundationModelID}, gatewaycore.EffectiveParams{})
	require.NoError(t, err)
	require.NotNil(t, gen)

	_, _, err = gen.Next()
	assert.Error(t, err)
}

func TestResolve_UnknownModel(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.Resolve(context.Background(), &chatapi.ChatRequest{Model: "does-not-exist"}, gatewaycore.EffectiveParams{})
	require.Error(t, err)

	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, 404, gwErr.HTTPStatus())
}

func TestRegisterModel_Overwrite(t *testing.T) {
	t.Parallel()

	r := New()
	calls := 0
	r.RegisterModel("local-7b", func(ctx context.Context, model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
		calls++
		return nil, nil
	})
	r.RegisterModel("local-7b", func(ctx context.Context, model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
		calls += 10
		return nil, nil
	})

	_, _ = r.Resolve(context.Background(), &chatapi.ChatRequest{Model: "local-7b"}, gatewaycore.EffectiveParams{})
	assert.Equal(t, 10, calls)
}

func TestListModels(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterModel("local-7b", func(ctx context.Context, model string, req *chatapi.ChatRequest, params gatewaycore.EffectiveParams) (gatewaycore.Generator, error) {
		return nil, nil
	})

	models := r.ListModels()
	assert.Contains(t, models, FoundationModelID)
	assert.Contains(t, models, "local-7b")
}
