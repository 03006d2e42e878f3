package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer is the slice of the OpenTelemetry tracer the core needs. Any
// trace.Tracer satisfies it, including the no-op tracer the global API
// returns when no SDK is installed, which is what tests rely on.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}
