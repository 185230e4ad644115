package wpool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracing(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	subject := newPool(t, WithFixedWorkers(1), WithTracerProvider(tp))

	var sawSpan bool
	ok, err := subject.Submit(ctx, func(ctx context.Context) error {
		sawSpan = trace.SpanFromContext(ctx).SpanContext().IsValid()
		return nil
	})
	require.NoError(t, err)
	failed, err := subject.Submit(ctx, func(context.Context) error { return errors.New("carrier lost") })
	require.NoError(t, err)

	_, err = ok.Await(ctx)
	require.NoError(t, err)
	_, err = failed.Await(ctx)
	require.Error(t, err)
	require.NoError(t, subject.Stop(ctx))

	assert.True(t, sawSpan, "the task context must carry the execution span")

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	byTask := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		assert.Equal(t, "wpool.execute", s.Name())
		assert.Equal(t, trace.SpanKindInternal, s.SpanKind())
		attrs := attribute.NewSet(s.Attributes()...)
		worker, found := attrs.Value("wpool.worker")
		require.True(t, found)
		assert.Equal(t, "worker-0", worker.AsString())
		id, found := attrs.Value("wpool.task_id")
		require.True(t, found)
		byTask[id.AsString()] = s
	}

	assert.Equal(t, codes.Ok, byTask[ok.ID().String()].Status().Code)

	bad := byTask[failed.ID().String()]
	require.NotNil(t, bad)
	assert.Equal(t, codes.Error, bad.Status().Code)
	require.Len(t, bad.Events(), 1)
	assert.Equal(t, "exception", bad.Events()[0].Name)
}

func TestTracingCancelledTask(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	subject := newPool(t, WithFixedWorkers(1), WithTracerProvider(tp), WithShutdownMode(ShutdownModeImmediate))

	started := make(chan struct{})
	_, err := subject.Submit(ctx, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started
	require.NoError(t, subject.Stop(ctx))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events(), "cancellation is not recorded as an exception")
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("wpool.cancelled", true))
}
