package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), Config{ServiceName: "onlsd", Traces: true, Metrics: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, before, otel.GetTracerProvider())
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Endpoint: "localhost:4318", Traces: true})
	require.Error(t, err)
}

func TestInitInstallsTracerProvider(t *testing.T) {
	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	shutdown, err := Init(context.Background(), Config{
		ServiceName: "onlsd",
		Environment: "test",
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		Traces:      true,
	})
	require.NoError(t, err)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =x,tenant=onls")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "onls"}, got)
}
