package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/fieldguide/internal/config"
)

func TestInit_DisabledInstallsNoop(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Init(ctx, config.TelemetryConfig{}, "fieldguide", "test"))
	defer Shutdown(ctx)

	assert.Empty(t, shutdownFns)

	_, span := Tracer("").Start(ctx, "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInit_EnabledRegistersShutdown(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Init(ctx, config.TelemetryConfig{Enabled: true}, "fieldguide", "test"))
	assert.Len(t, shutdownFns, 2)

	_, span := Tracer("test").Start(ctx, "recorded")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	counter, err := Meter("test").Int64Counter("test.count")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	Shutdown(ctx)
	assert.Empty(t, shutdownFns)

	// Leave the process with no-op providers for other tests
	require.NoError(t, Init(ctx, config.TelemetryConfig{}, "fieldguide", "test"))
}
