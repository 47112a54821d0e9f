package client

import (
	"context"
	"os"

	"github.com/nicktill/hindsight/pkg/trace"
	"github.com/nicktill/hindsight/pkg/tracectx"
)

// ServiceNameEnvVar names the environment variable a Tracer reads its
// service name from.
const ServiceNameEnvVar = "HINDSIGHT_SERVICE_NAME"

// DefaultServiceName is used when ServiceNameEnvVar is unset or empty.
const DefaultServiceName = "unknown"

// Tracer is the entry point for producing spans. It owns the
// background batcher that exports finished spans to the collector;
// the RPC session it drives is never itself instrumented, which is
// what prevents the export path from recursively generating the
// spans it is trying to export.
type Tracer struct {
	serviceName string
	batcher     *Batcher
}

// NewTracer builds a Tracer over transport and starts its batcher.
// The service name is read from HINDSIGHT_SERVICE_NAME, defaulting to
// "unknown" if unset.
func NewTracer(ctx context.Context, transport Transport) *Tracer {
	serviceName := os.Getenv(ServiceNameEnvVar)
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	batcher := NewBatcher(transport)
	batcher.Start(ctx)

	return &Tracer{serviceName: serviceName, batcher: batcher}
}

// Close stops the batcher, flushing any remaining spans exactly once.
func (t *Tracer) Close() {
	t.batcher.Stop()
}

// Span starts building a new span named name, inheriting the tracer's
// service name.
func (t *Tracer) Span(name string) *SpanBuilder {
	return &SpanBuilder{
		name:        name,
		serviceName: t.serviceName,
		attributes:  trace.NewAttributes(),
		batcher:     t.batcher,
	}
}

// SpanBuilder fluently assembles a span before it starts running.
type SpanBuilder struct {
	name        string
	serviceName string
	attributes  *trace.Attributes
	parent      *tracectx.TraceContext
	batcher     *Batcher
}

// WithParent attaches a parent trace context for propagation; the
// started span becomes parent.Child() instead of a fresh root.
func (b *SpanBuilder) WithParent(parent tracectx.TraceContext) *SpanBuilder {
	b.parent = &parent
	return b
}

// WithAttribute sets an attribute on the span to be started.
func (b *SpanBuilder) WithAttribute(key string, value trace.AttributeValue) *SpanBuilder {
	b.attributes.Set(key, value)
	return b
}

// Start resolves the trace context — parent.Child() if a parent was
// set, otherwise a fresh root — stamps the start time, and returns the
// in-progress ActiveSpan.
func (b *SpanBuilder) Start() *ActiveSpan {
	var ctx tracectx.TraceContext
	if b.parent != nil {
		ctx = b.parent.Child()
	} else {
		ctx = tracectx.NewRootContext()
	}

	span := &trace.Span{
		TraceID:      ctx.TraceID,
		SpanID:       ctx.SpanID,
		ParentSpanID: ctx.ParentSpanID,
		Name:         b.name,
		StartTime:    trace.Now(),
		Attributes:   b.attributes,
		Events:       nil,
		Status:       trace.OKStatus,
		ServiceName:  b.serviceName,
	}

	return &ActiveSpan{span: span, context: ctx, batcher: b.batcher}
}

// ActiveSpan is a span that has started but not yet ended.
type ActiveSpan struct {
	span    *trace.Span
	context tracectx.TraceContext
	batcher *Batcher
}

// Context exposes the span's trace context, for propagation to
// downstream calls (e.g. embedding as a traceparent header).
func (a *ActiveSpan) Context() tracectx.TraceContext {
	return a.context
}

// AddEvent appends a named, timestamped event with no attributes.
func (a *ActiveSpan) AddEvent(name string) {
	a.span.Events = append(a.span.Events, trace.SpanEvent{
		Name:       name,
		Timestamp:  trace.Now(),
		Attributes: trace.NewAttributes(),
	})
}

// SetError marks the span as failed with the given message.
func (a *ActiveSpan) SetError(message string) {
	a.span.Status = trace.ErrorStatus(message)
}

// End stamps the span's end time and enqueues it onto the tracer's
// batcher. Enqueue failure cannot occur — the batcher's queue is
// unbounded — so End has no error to report.
func (a *ActiveSpan) End() {
	endTime := trace.Now()
	a.span.EndTime = &endTime
	a.batcher.Add(a.span)
}
