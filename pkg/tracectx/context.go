package tracectx

import (
	"fmt"
	"strconv"
	"strings"
)

// SampledFlag is the single flag bit this implementation understands:
// bit 0 of the traceparent flags byte.
const SampledFlag uint8 = 0x01

// TraceContext is the (trace_id, span_id, parent_span_id, flags) tuple
// propagated across service boundaries so a child process can continue
// the trace.
type TraceContext struct {
	TraceID      TraceID
	SpanID       SpanID
	ParentSpanID *SpanID
	Flags        uint8
}

// NewRootContext starts a brand new trace: random trace_id and
// span_id, no parent, sampled.
func NewRootContext() TraceContext {
	return TraceContext{
		TraceID: NewTraceID(),
		SpanID:  NewSpanID(),
		Flags:   SampledFlag,
	}
}

// Child derives a context for a new span within the same trace: same
// trace_id and flags, a fresh span_id, parent_span_id set to this
// context's span_id.
func (tc TraceContext) Child() TraceContext {
	parent := tc.SpanID
	return TraceContext{
		TraceID:      tc.TraceID,
		SpanID:       NewSpanID(),
		ParentSpanID: &parent,
		Flags:        tc.Flags,
	}
}

// Sampled reports whether bit 0 of Flags is set.
func (tc TraceContext) Sampled() bool {
	return tc.Flags&SampledFlag != 0
}

// ToTraceparent formats the context as a W3C traceparent header value:
// "00-<32 hex>-<16 hex>-<2 hex>".
func (tc TraceContext) ToTraceparent() string {
	return fmt.Sprintf("00-%s-%s-%02x", tc.TraceID.Hex(), tc.SpanID.Hex(), tc.Flags)
}

// ParseTraceparent parses a W3C traceparent header value. The header
// carries only the immediate parent in its span-id slot, so the
// returned context's ParentSpanID is always nil — callers that need a
// parent/child relationship call Child() on the result.
func ParseTraceparent(header string) (TraceContext, error) {
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return TraceContext{}, ErrInvalidFormat
	}
	if parts[0] != "00" {
		return TraceContext{}, ErrUnsupportedVersion
	}

	traceID, err := TraceIDFromHex(parts[1])
	if err != nil {
		return TraceContext{}, err
	}
	spanID, err := SpanIDFromHex(parts[2])
	if err != nil {
		return TraceContext{}, err
	}
	if len(parts[3]) != 2 {
		return TraceContext{}, ErrInvalidLength
	}
	flags, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return TraceContext{}, ErrInvalidHex
	}

	return TraceContext{
		TraceID: traceID,
		SpanID:  spanID,
		Flags:   uint8(flags),
	}, nil
}
