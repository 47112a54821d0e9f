package store

import (
	"time"

	"github.com/nicktill/hindsight/pkg/trace"
)

// Ingest stores every span, incrementally recomputing the trace each
// one belongs to, and publishes the resulting lifecycle events. It
// returns the number of spans it stored — callers that must filter
// spans before calling Ingest (the RPC layer drops self-traced spans)
// report their own pre-filter count to their own caller, not this one.
func (s *TraceStore) Ingest(spans []*trace.Span) (int, error) {
	count := 0
	for _, span := range spans {
		if err := s.ingestOne(span); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *TraceStore) ingestOne(span *trace.Span) error {
	// Step 1: a span starts a new trace iff it is parentless and its
	// span_id has not been seen before — checked against the span map,
	// not the trace map, since an orphan child can arrive first and a
	// trace record may not exist yet even for a returning span_id.
	hadSpan, err := s.hasSpan(span.SpanID)
	if err != nil {
		return err
	}
	isNewTrace := span.ParentSpanID == nil && !hadSpan

	if isNewTrace {
		s.broadcaster.Publish(trace.TraceStarted(span.TraceID, span.Name, span.ServiceName))
	}
	// Step 3: always published, whether or not the trace assembles.
	s.broadcaster.Publish(trace.SpanAdded(span.TraceID, span.Clone()))

	// Step 4: insert/overwrite.
	if err := s.putSpan(span); err != nil {
		return err
	}

	// Step 5: recompute the affected trace from the full span set.
	siblings, err := s.spansByTrace(span.TraceID)
	if err != nil {
		return err
	}

	assembled, ok := trace.FromSpans(siblings)
	if !ok {
		// No root yet: the trace cannot be assembled until its root
		// span arrives, but the span itself is still stored and
		// retrievable once the root shows up.
		return nil
	}

	existingStored, hadTrace, err := s.getStoredTrace(span.TraceID)
	if err != nil {
		return err
	}
	wasComplete := hadTrace && existingStored.toTrace().IsComplete()

	// created_at is refreshed on every touch, not just the first: the
	// TTL clock measures last-touched, so an actively-touched trace
	// keeps getting its eviction deadline pushed out.
	if err := s.putTrace(assembled, time.Now()); err != nil {
		return err
	}

	if !wasComplete && assembled.IsComplete() {
		duration, _ := assembled.DurationNanos()
		s.broadcaster.Publish(trace.TraceCompleted(span.TraceID, duration, len(assembled.Spans)))
	}

	return nil
}
