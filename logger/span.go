package logger

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
)

// tracerName identifies this library to the OpenTelemetry tracer provider.
const tracerName = "github.com/sightline-ai/sightline"

// Span measures and logs a named unit of work at a pipeline stage boundary.
// It starts an OpenTelemetry span and logs the elapsed time when ended.
//
// Usage:
//
//	ctx, end := logger.StartSpan(ctx, "frame selection")
//	defer end()
type Span func()

// StartSpan begins a measured span. The returned function ends the span and
// logs the duration; it must be called exactly once, typically via defer.
// The returned context carries the OpenTelemetry span for downstream calls.
func StartSpan(ctx context.Context, name string, attrs ...any) (context.Context, Span) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	DebugContext(ctx, "Span started", append([]any{"span", name}, attrs...)...)

	return ctx, func() {
		duration := time.Since(start)
		span.End()
		logAttrs := make([]any, 0, 4+len(attrs))
		logAttrs = append(logAttrs, "span", name, "duration_ms", duration.Milliseconds())
		logAttrs = append(logAttrs, attrs...)
		InfoContext(ctx, "Span finished", logAttrs...)
	}
}

