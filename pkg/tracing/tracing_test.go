package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("storefront-core")

	assert.Equal(t, "storefront-core", cfg.ServiceName)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracer_ReturnsUsableTracer(t *testing.T) {
	tracer := Tracer("checkout")
	require.NotNil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "begin_checkout")
	assert.NotNil(t, ctx)
	span.End()
}
