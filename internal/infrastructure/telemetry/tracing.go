package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of business spans
const TracerName = "github.com/storefront/backend"

// Span attribute keys used by business spans
const (
	SpanAttrUserID    = "user_id"
	SpanAttrOrderID   = "order_id"
	SpanAttrProductID = "product_id"
	SpanAttrLines     = "cart.lines"
	SpanAttrQuantity  = "cart.quantity"
	SpanAttrReason    = "checkout.reason"
)

// StartSpan starts an internal span on the global tracer. The caller must End it.
//
//	ctx, span := telemetry.StartSpan(ctx, "checkout.commit", attribute.String(telemetry.SpanAttrUserID, id))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks the span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span successful
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace id of the span in ctx, or ""
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Stringer converts a fmt.Stringer (uuid.UUID, decimal.Decimal) to a string attribute
func Stringer(key string, v fmt.Stringer) attribute.KeyValue {
	return attribute.String(key, v.String())
}
