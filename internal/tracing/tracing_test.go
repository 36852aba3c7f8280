package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansReachExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitWithExporter("ember", "test", exp)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	ctx, parent := StartSpan(context.Background(), "run")
	_, child := StartSpan(ctx, "thread")
	child.WithAttributes(map[string]string{"thread": "main"}).SetInt("tid", 1)
	child.AddEvent("step", map[string]string{"op": "yield"})
	EndSpan(child, nil)
	EndSpan(parent, errors.New("budget"))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "thread", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Len(t, spans[0].Events, 1)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init("ember", "test", &buf)
	require.NoError(t, err)
	_, sp := StartSpan(context.Background(), "boot")
	EndSpan(sp, nil)
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"boot"`)
}

func TestNilSpanIsNoop(t *testing.T) {
	var sp *Span
	assert.NotPanics(t, func() {
		sp.WithAttributes(map[string]string{"a": "b"}).SetInt("n", 1)
		sp.AddEvent("x", nil)
		EndSpan(sp, nil)
	})
}
