package trace

import (
	"sort"
	"strings"

	"github.com/nicktill/hindsight/pkg/tracectx"
)

// FromSpans assembles a Trace from every span sharing a trace_id. The
// caller must have already grouped spans by trace_id; FromSpans does
// not check that every span shares the same TraceID.
//
// Returns (nil, false) if spans is empty, or if no span has a nil
// ParentSpanID (no root). If more than one span qualifies as root, the
// one with the earliest StartTime wins — ties broken by the stable
// sort's original relative order, matching the first-match semantics
// of a find() over spans sorted by start_time.
func FromSpans(spans []*Span) (*Trace, bool) {
	if len(spans) == 0 {
		return nil, false
	}

	sorted := make([]*Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	var root *Span
	for _, s := range sorted {
		if s.ParentSpanID == nil {
			root = s
			break
		}
	}
	if root == nil {
		return nil, false
	}

	var endTime *Timestamp
	for _, s := range sorted {
		if s.EndTime == nil {
			continue
		}
		if endTime == nil || *s.EndTime > *endTime {
			t := *s.EndTime
			endTime = &t
		}
	}

	return &Trace{
		TraceID:   sorted[0].TraceID,
		Spans:     sorted,
		RootSpan:  root.SpanID,
		StartTime: root.StartTime,
		EndTime:   endTime,
	}, true
}

// Children returns every span in the trace whose ParentSpanID equals
// spanID.
func (t *Trace) Children(spanID tracectx.SpanID) []*Span {
	var out []*Span
	for _, s := range t.Spans {
		if s.ParentSpanID != nil && *s.ParentSpanID == spanID {
			out = append(out, s)
		}
	}
	return out
}

// IsComplete reports whether the trace has an end_time and every span
// in it has ended.
func (t *Trace) IsComplete() bool {
	if t.EndTime == nil {
		return false
	}
	for _, s := range t.Spans {
		if s.EndTime == nil {
			return false
		}
	}
	return true
}

// HasErrors reports whether any span in the trace carries an error
// status. This is always recomputed from the current span set, never
// cached — the authoritative source is this scan, not any stored
// summary field.
func (t *Trace) HasErrors() bool {
	for _, s := range t.Spans {
		if s.Status.IsError() {
			return true
		}
	}
	return false
}

// DurationNanos returns EndTime - StartTime, or (0, false) if the
// trace has not completed or a clock jump makes EndTime precede
// StartTime (an unknown duration, never a wrapped-around one).
func (t *Trace) DurationNanos() (uint64, bool) {
	if t.EndTime == nil || *t.EndTime < t.StartTime {
		return 0, false
	}
	return uint64(*t.EndTime) - uint64(t.StartTime), true
}

const (
	attrPicanteQuery = "picante.query"
	attrRPCSystem    = "rpc.system"
	attrDodecaBuild  = "dodeca.build"
	rpcSystemRapace  = "rapace"
)

// ClassifyType scans every span's attributes for well-known framework
// markers and labels the trace accordingly: Generic if none match, the
// single matched framework if exactly one does, Mixed if two or more
// do.
func (t *Trace) ClassifyType() TraceType {
	var picante, rapace, dodeca bool

	for _, s := range t.Spans {
		for _, k := range s.Attributes.Keys() {
			if k == attrPicanteQuery || strings.HasPrefix(k, attrPicanteQuery) {
				picante = true
				break
			}
		}
		if v, ok := s.Attributes.Get(attrRPCSystem); ok {
			if str, isStr := v.AsString(); isStr && str == rpcSystemRapace {
				rapace = true
			}
		}
		if s.Attributes.Has(attrDodecaBuild) {
			dodeca = true
		}
	}

	count := 0
	for _, matched := range []bool{picante, rapace, dodeca} {
		if matched {
			count++
		}
	}

	switch count {
	case 0:
		return TraceGeneric
	case 1:
		switch {
		case picante:
			return TracePicante
		case rapace:
			return TraceRapace
		default:
			return TraceDodeca
		}
	default:
		return TraceMixed
	}
}
