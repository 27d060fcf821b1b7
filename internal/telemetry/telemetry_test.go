package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"eino_dealer_bot/src/model"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), model.TelemetryConfig{Enabled: false, Endpoint: "localhost:4317"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewProviderSamplesEverySpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := NewProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	_, span := provider.Tracer("test").Start(context.Background(), "turn")
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "turn", recorder.Ended()[0].Name())
}
