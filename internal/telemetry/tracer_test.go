// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.False(t, provider.Enabled())
	assert.NoError(t, provider.Shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "orkestra", ExporterType: "invalid"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: invalid (supported: grpc, http)", err.Error())
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "orkestra",
		ExporterType: "http",
		Endpoint:     "127.0.0.1:4318",
		SamplingRate: 0.5,
	})
	require.NoError(t, err)
	assert.True(t, provider.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // nothing to flush; do not wait on the collector
	_ = provider.Shutdown(ctx)
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}

func TestRootSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want sdktrace.Sampler
	}{
		{1, sdktrace.AlwaysSample()},
		{1.5, sdktrace.AlwaysSample()},
		{0, sdktrace.NeverSample()},
		{0.25, sdktrace.TraceIDRatioBased(0.25)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want.Description(), rootSampler(tt.rate).Description(), "rate %v", tt.rate)
	}
}

func TestSessionAttributes(t *testing.T) {
	attrs := SessionAttributes("sid", "", 4000)
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(SessionIDKey, "sid"),
		attribute.Int(SessionPort, 4000),
	}, attrs)
}
