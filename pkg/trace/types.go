// Package trace implements the span and trace data model: typed
// records, assembly of a trace out of its constituent spans, and the
// framework-classification heuristic, plus the live event broadcaster
// that fans trace lifecycle events out to independent subscribers.
package trace

import (
	"github.com/nicktill/hindsight/pkg/tracectx"
)

// Timestamp is nanoseconds since the UNIX epoch. Monotonicity across a
// process is not required: a span carries both its own start and end,
// so a clock jump can only ever produce an unknown (not wrap-around)
// duration.
type Timestamp uint64

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return Timestamp(nowFunc())
}

// SpanStatusKind distinguishes a successful span from an errored one.
type SpanStatusKind uint8

const (
	StatusOK SpanStatusKind = iota
	StatusError
)

// SpanStatus reports whether a span completed successfully; an error
// status carries a human-readable message.
type SpanStatus struct {
	Kind    SpanStatusKind
	Message string
}

// OKStatus is the zero-value successful status.
var OKStatus = SpanStatus{Kind: StatusOK}

// ErrorStatus builds an error status with the given message.
func ErrorStatus(message string) SpanStatus {
	return SpanStatus{Kind: StatusError, Message: message}
}

// IsError reports whether the status represents a failure.
func (s SpanStatus) IsError() bool { return s.Kind == StatusError }

// SpanEvent is a named, timestamped point-in-time annotation on a span.
type SpanEvent struct {
	Name       string      `json:"name"`
	Timestamp  Timestamp   `json:"timestamp"`
	Attributes *Attributes `json:"attributes"`
}

// Span is a single timed operation within a trace.
type Span struct {
	TraceID      tracectx.TraceID `json:"trace_id"`
	SpanID       tracectx.SpanID  `json:"span_id"`
	ParentSpanID *tracectx.SpanID `json:"parent_span_id,omitempty"`
	Name         string           `json:"name"`
	StartTime    Timestamp        `json:"start_time"`
	EndTime      *Timestamp       `json:"end_time,omitempty"`
	Attributes   *Attributes      `json:"attributes"`
	Events       []SpanEvent      `json:"events"`
	Status       SpanStatus       `json:"status"`
	ServiceName  string           `json:"service_name"`
}

// DurationNanos returns EndTime - StartTime, or (0, false) if the span
// has not ended or a clock jump makes EndTime precede StartTime (an
// unknown duration, never a wrapped-around one).
func (s *Span) DurationNanos() (uint64, bool) {
	if s.EndTime == nil || *s.EndTime < s.StartTime {
		return 0, false
	}
	return uint64(*s.EndTime) - uint64(s.StartTime), true
}

// Clone returns a deep copy of the span, safe to hand to a caller that
// must not observe later mutation of the stored original.
func (s *Span) Clone() *Span {
	if s == nil {
		return nil
	}
	out := *s
	if s.ParentSpanID != nil {
		p := *s.ParentSpanID
		out.ParentSpanID = &p
	}
	if s.EndTime != nil {
		e := *s.EndTime
		out.EndTime = &e
	}
	out.Attributes = s.Attributes.Clone()
	out.Events = make([]SpanEvent, len(s.Events))
	for i, ev := range s.Events {
		out.Events[i] = SpanEvent{
			Name:       ev.Name,
			Timestamp:  ev.Timestamp,
			Attributes: ev.Attributes.Clone(),
		}
	}
	return &out
}

// TraceType classifies a trace by the first-party framework(s) whose
// spans it contains.
type TraceType uint8

const (
	TraceGeneric TraceType = iota
	TracePicante
	TraceRapace
	TraceDodeca
	TraceMixed
)

func (t TraceType) String() string {
	switch t {
	case TracePicante:
		return "picante"
	case TraceRapace:
		return "rapace"
	case TraceDodeca:
		return "dodeca"
	case TraceMixed:
		return "mixed"
	default:
		return "generic"
	}
}

// Trace is the derived record assembled from every span sharing a
// trace_id.
type Trace struct {
	TraceID   tracectx.TraceID
	Spans     []*Span
	RootSpan  tracectx.SpanID
	StartTime Timestamp
	EndTime   *Timestamp
}

// TraceSummary is the compact listing record returned by list_traces.
type TraceSummary struct {
	TraceID       tracectx.TraceID `json:"trace_id"`
	RootSpanName  string           `json:"root_span_name"`
	ServiceName   string           `json:"service_name"`
	StartTime     Timestamp        `json:"start_time"`
	DurationNanos *uint64          `json:"duration_nanos,omitempty"`
	SpanCount     int              `json:"span_count"`
	HasErrors     bool             `json:"has_errors"`
	TraceType     TraceType        `json:"trace_type"`
}

// TraceFilter narrows list_traces results. A nil/zero field means "no
// constraint" for that dimension.
type TraceFilter struct {
	Service         *string
	MinDurationNs   *uint64
	MaxDurationNs   *uint64
	HasErrors       *bool
	Limit           *int
}

// DefaultListLimit is applied when TraceFilter.Limit is nil.
const DefaultListLimit = 100

// TraceEventKind tags which variant of TraceEvent is populated.
type TraceEventKind uint8

const (
	EventTraceStarted TraceEventKind = iota
	EventTraceCompleted
	EventSpanAdded
)

// TraceEvent is a lifecycle notification published by the trace store
// to live subscribers.
type TraceEvent struct {
	Kind TraceEventKind

	TraceID tracectx.TraceID

	// TraceStarted fields.
	RootSpanName string
	ServiceName  string

	// TraceCompleted fields.
	DurationNanos uint64
	SpanCount     int

	// SpanAdded fields.
	Span *Span
}

// TraceStarted builds a TraceStarted event.
func TraceStarted(traceID tracectx.TraceID, rootSpanName, serviceName string) TraceEvent {
	return TraceEvent{
		Kind:         EventTraceStarted,
		TraceID:      traceID,
		RootSpanName: rootSpanName,
		ServiceName:  serviceName,
	}
}

// TraceCompleted builds a TraceCompleted event.
func TraceCompleted(traceID tracectx.TraceID, durationNanos uint64, spanCount int) TraceEvent {
	return TraceEvent{
		Kind:          EventTraceCompleted,
		TraceID:       traceID,
		DurationNanos: durationNanos,
		SpanCount:     spanCount,
	}
}

// SpanAdded builds a SpanAdded event.
func SpanAdded(traceID tracectx.TraceID, span *Span) TraceEvent {
	return TraceEvent{
		Kind:    EventSpanAdded,
		TraceID: traceID,
		Span:    span,
	}
}
