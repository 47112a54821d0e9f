package trace

import (
	"testing"

	"github.com/nicktill/hindsight/pkg/tracectx"
)

func newSpan(traceID tracectx.TraceID, parent *tracectx.SpanID, start uint64, end *uint64) *Span {
	s := &Span{
		TraceID:      traceID,
		SpanID:       tracectx.NewSpanID(),
		ParentSpanID: parent,
		Name:         "op",
		StartTime:    Timestamp(start),
		Attributes:   NewAttributes(),
		ServiceName:  "svc",
	}
	if end != nil {
		e := Timestamp(*end)
		s.EndTime = &e
	}
	return s
}

func u64p(v uint64) *uint64 { return &v }

func TestFromSpansEmpty(t *testing.T) {
	if _, ok := FromSpans(nil); ok {
		t.Error("expected no trace from empty span set")
	}
}

func TestFromSpansNoRoot(t *testing.T) {
	traceID := tracectx.NewTraceID()
	orphanParent := tracectx.NewSpanID()
	spans := []*Span{newSpan(traceID, &orphanParent, 1, u64p(2))}

	if _, ok := FromSpans(spans); ok {
		t.Error("expected no trace when every span has a parent")
	}
}

func TestFromSpansBasicAssembly(t *testing.T) {
	traceID := tracectx.NewTraceID()
	root := newSpan(traceID, nil, 100, u64p(112))
	child := newSpan(traceID, &root.SpanID, 102, u64p(110))

	// Out-of-order input.
	trace, ok := FromSpans([]*Span{child, root})
	if !ok {
		t.Fatal("expected trace to assemble")
	}
	if trace.RootSpan != root.SpanID {
		t.Error("expected root span id to match parentless span")
	}
	if trace.StartTime != 100 {
		t.Errorf("expected start time 100, got %d", trace.StartTime)
	}
	if trace.EndTime == nil || *trace.EndTime != 112 {
		t.Errorf("expected end time 112, got %v", trace.EndTime)
	}
	if len(trace.Spans) != 2 {
		t.Errorf("expected 2 spans, got %d", len(trace.Spans))
	}
}

func TestFromSpansOpenTraceHasNoEndTime(t *testing.T) {
	traceID := tracectx.NewTraceID()
	root := newSpan(traceID, nil, 100, nil)

	trace, ok := FromSpans([]*Span{root})
	if !ok {
		t.Fatal("expected trace to assemble")
	}
	if trace.EndTime != nil {
		t.Error("expected nil end time when every span is open")
	}
	if trace.IsComplete() {
		t.Error("expected incomplete trace")
	}
}

func TestFromSpansMultipleRootsPicksEarliest(t *testing.T) {
	traceID := tracectx.NewTraceID()
	late := newSpan(traceID, nil, 200, u64p(210))
	early := newSpan(traceID, nil, 100, u64p(150))

	trace, ok := FromSpans([]*Span{late, early})
	if !ok {
		t.Fatal("expected trace to assemble")
	}
	if trace.RootSpan != early.SpanID {
		t.Error("expected earliest parentless span to be root")
	}
}

func TestClassifyTypeGeneric(t *testing.T) {
	traceID := tracectx.NewTraceID()
	root := newSpan(traceID, nil, 1, u64p(2))
	trace, _ := FromSpans([]*Span{root})

	if got := trace.ClassifyType(); got != TraceGeneric {
		t.Errorf("expected Generic, got %v", got)
	}
}

func TestClassifyTypePicante(t *testing.T) {
	traceID := tracectx.NewTraceID()
	root := newSpan(traceID, nil, 1, u64p(2))
	root.Attributes.Set("picante.query", BoolValue(true))
	trace, _ := FromSpans([]*Span{root})

	if got := trace.ClassifyType(); got != TracePicante {
		t.Errorf("expected Picante, got %v", got)
	}
}

func TestClassifyTypeMixed(t *testing.T) {
	traceID := tracectx.NewTraceID()
	root := newSpan(traceID, nil, 1, u64p(10))
	root.Attributes.Set("picante.query", BoolValue(true))
	child := newSpan(traceID, &root.SpanID, 2, u64p(5))
	child.Attributes.Set("rpc.system", StringValue("rapace"))

	trace, _ := FromSpans([]*Span{root, child})

	if got := trace.ClassifyType(); got != TraceMixed {
		t.Errorf("expected Mixed, got %v", got)
	}
}

func TestHasErrors(t *testing.T) {
	traceID := tracectx.NewTraceID()
	root := newSpan(traceID, nil, 1, u64p(2))
	root.Status = ErrorStatus("boom")
	trace, _ := FromSpans([]*Span{root})

	if !trace.HasErrors() {
		t.Error("expected HasErrors to be true")
	}
}
