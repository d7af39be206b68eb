package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a span: span name is event.Msg, and
// standard fields plus Meta become attributes. Spans represent a point in
// time (stage start/end, gate evaluated, pause entered) rather than a
// duration, so Emit starts and immediately ends the span.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter wraps tracer, typically obtained from
// otel.Tracer("ea-stress-lab") after the caller configures a
// TracerProvider/exporter.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	o.addStandardAttributes(span, event)
	o.addMetadataAttributes(span, event.Meta)
	if err, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, err)
		span.RecordError(fmt.Errorf("%s", err))
	}
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.addStandardAttributes(span, event)
		o.addMetadataAttributes(span, event.Meta)
		if err, ok := event.Meta["error"].(string); ok {
			span.SetStatus(codes.Error, err)
			span.RecordError(fmt.Errorf("%s", err))
		}
		span.End()
	}
	return nil
}

// Flush force-flushes the global TracerProvider if it supports it
// (e.g. the SDK batch span processor); no-op for a provider that doesn't.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) addStandardAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("eastress.run_id", event.RunID),
		attribute.Int("eastress.step", event.Step),
		attribute.String("eastress.stage_name", event.StageName),
	)
}

// addMetadataAttributes maps well-known Meta keys to namespaced attribute
// names and converts the rest by type, falling back to a string rendering.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := key
		switch key {
		case "duration_ms":
			attrKey = "eastress.stage.duration_ms"
		case "gate":
			attrKey = "eastress.gate.name"
		case "fix_attempts":
			attrKey = "eastress.fix_attempts"
		case "refine_iterations":
			attrKey = "eastress.refine_iterations"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}

var _ Emitter = (*OTelEmitter)(nil)
