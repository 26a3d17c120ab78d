package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup_NoEndpoint(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "localhost:4317",
		ServiceName: "apimeta-test",
		Insecure:    true,
	})
	require.NoError(t, err)
	assert.IsType(t, &sdktrace.TracerProvider{}, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	assert.True(t, span.IsRecording())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// No collector listens; only the call itself matters here
	_ = shutdown(ctx)
}
