package telemetry

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ferry-io/ferry/pkg/delta"
	"github.com/ferry-io/ferry/pkg/logging"
)

// SetupTracing initializes OpenTelemetry tracing with a Jaeger exporter if
// the OTEL_EXPORTER_JAEGER_ENDPOINT environment variable is set (e.g.
// http://localhost:14268/api/traces), returning a shutdown function. If the
// variable is unset, tracing is left as a no-op.
func SetupTracing(ctx context.Context) (func(context.Context) error, error) {
	// Check for an exporter endpoint.
	endpoint := os.Getenv("OTEL_EXPORTER_JAEGER_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	// Create the exporter.
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, err
	}

	// Describe this service.
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("ferry"),
	))
	if err != nil {
		return nil, err
	}

	// Install the tracer provider.
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// TracingRecorder is a Recorder that emits OpenTelemetry spans: one span per
// operation with nested spans per phase. Span bookkeeping failures never
// propagate - orphaned phase or end notifications are simply dropped.
type TracingRecorder struct {
	// logger is the recorder's logger, used at trace level for dropped
	// notifications.
	logger *logging.Logger
	// tracer is the recorder's tracer.
	tracer trace.Tracer
	// correlation is a unique identifier attached to every span emitted by
	// this recorder, correlating all operations of a single invocation.
	correlation string
	// lock serializes access to the span maps.
	lock sync.Mutex
	// operations maps operation identifiers to their open spans and span
	// contexts.
	operations map[string]trace.Span
	// contexts maps operation identifiers to the contexts carrying their
	// operation spans, for use as phase span parents.
	contexts map[string]context.Context
	// phases maps operation identifiers to their open phase spans.
	phases map[string]trace.Span
}

// NewTracingRecorder creates a recorder that emits spans through the global
// tracer provider.
func NewTracingRecorder(logger *logging.Logger) *TracingRecorder {
	return &TracingRecorder{
		logger:      logger,
		tracer:      otel.Tracer("ferry/transfer"),
		correlation: uuid.NewString(),
		operations:  make(map[string]trace.Span),
		contexts:    make(map[string]context.Context),
		phases:      make(map[string]trace.Span),
	}
}

// OperationBegan implements Recorder.OperationBegan.
func (r *TracingRecorder) OperationBegan(operation, source, destination string) {
	ctx, span := r.tracer.Start(context.Background(), "transfer",
		trace.WithAttributes(
			attribute.String("ferry.correlation", r.correlation),
			attribute.String("ferry.operation", operation),
			attribute.String("ferry.source", source),
			attribute.String("ferry.destination", destination),
		),
	)
	r.lock.Lock()
	defer r.lock.Unlock()
	r.operations[operation] = span
	r.contexts[operation] = ctx
}

// PhaseBegan implements Recorder.PhaseBegan.
func (r *TracingRecorder) PhaseBegan(operation string, phase Phase) {
	r.lock.Lock()
	defer r.lock.Unlock()
	ctx, ok := r.contexts[operation]
	if !ok {
		r.logger.Tracef("dropping phase start for unknown operation %s", operation)
		return
	}
	_, span := r.tracer.Start(ctx, string(phase))
	r.phases[operation] = span
}

// PhaseEnded implements Recorder.PhaseEnded.
func (r *TracingRecorder) PhaseEnded(operation string, phase Phase) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if span, ok := r.phases[operation]; ok {
		span.End()
		delete(r.phases, operation)
	} else {
		r.logger.Tracef("dropping phase end for unknown operation %s", operation)
	}
}

// OperationEnded implements Recorder.OperationEnded.
func (r *TracingRecorder) OperationEnded(operation string, stats *delta.Stats, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	span, ok := r.operations[operation]
	if !ok {
		r.logger.Tracef("dropping operation end for unknown operation %s", operation)
		return
	}
	delete(r.operations, operation)
	delete(r.contexts, operation)
	if phase, ok := r.phases[operation]; ok {
		phase.End()
		delete(r.phases, operation)
	}
	if err != nil {
		span.RecordError(err)
	}
	if stats != nil {
		span.SetAttributes(
			attribute.Int64("ferry.blocks_matched", int64(stats.BlocksMatched)),
			attribute.Int64("ferry.bytes_matched", int64(stats.BytesMatched)),
			attribute.Int64("ferry.bytes_literal", int64(stats.BytesLiteral)),
			attribute.Float64("ferry.savings_ratio", stats.SavingsRatio),
		)
	}
	span.End()
}
