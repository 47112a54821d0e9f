package tracectx

import "testing"

func TestTraceIDHexRoundTrip(t *testing.T) {
	id := NewTraceID()
	hex := id.Hex()

	parsed, err := TraceIDFromHex(hex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Errorf("expected %v, got %v", id, parsed)
	}
	if len(hex) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(hex))
	}
}

func TestSpanIDHexRoundTrip(t *testing.T) {
	id := NewSpanID()
	hex := id.Hex()

	parsed, err := SpanIDFromHex(hex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Errorf("expected %v, got %v", id, parsed)
	}
	if len(hex) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(hex))
	}
}

func TestTraceIDFromHexRejectsWrongLength(t *testing.T) {
	cases := []string{"", "abc", string(make([]byte, 31)), string(make([]byte, 33))}
	for _, c := range cases {
		if _, err := TraceIDFromHex(c); err != ErrInvalidLength {
			t.Errorf("FromHex(%q): expected ErrInvalidLength, got %v", c, err)
		}
	}
}

func TestTraceIDFromHexRejectsNonHex(t *testing.T) {
	s := "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"
	if _, err := TraceIDFromHex(s); err != ErrInvalidHex {
		t.Errorf("expected ErrInvalidHex, got %v", err)
	}
}

func TestNewRootContext(t *testing.T) {
	ctx := NewRootContext()

	if ctx.ParentSpanID != nil {
		t.Error("expected root context to have no parent")
	}
	if !ctx.Sampled() {
		t.Error("expected root context to be sampled")
	}
}

func TestChildContext(t *testing.T) {
	root := NewRootContext()
	child := root.Child()

	if child.TraceID != root.TraceID {
		t.Error("expected child to share trace id with parent")
	}
	if child.SpanID == root.SpanID {
		t.Error("expected child to have a fresh span id")
	}
	if child.ParentSpanID == nil || *child.ParentSpanID != root.SpanID {
		t.Error("expected child's parent span id to be the root's span id")
	}
	if child.Flags != root.Flags {
		t.Error("expected child to inherit flags")
	}
}

func TestTraceparentRoundTrip(t *testing.T) {
	ctx := NewRootContext()
	header := ctx.ToTraceparent()

	parsed, err := ParseTraceparent(header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.TraceID != ctx.TraceID {
		t.Error("trace id mismatch after round trip")
	}
	if parsed.SpanID != ctx.SpanID {
		t.Error("span id mismatch after round trip")
	}
	if parsed.Flags != ctx.Flags {
		t.Error("flags mismatch after round trip")
	}
	// The header carries only the immediate parent in the span-id
	// slot; ParentSpanID is always nil after parsing.
	if parsed.ParentSpanID != nil {
		t.Error("expected parsed context to have nil parent span id")
	}
}

func TestParseTraceparentRejectsBadVersion(t *testing.T) {
	ctx := NewRootContext()
	header := "01-" + ctx.TraceID.Hex() + "-" + ctx.SpanID.Hex() + "-01"
	if _, err := ParseTraceparent(header); err != ErrUnsupportedVersion {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestParseTraceparentRejectsWrongFieldCount(t *testing.T) {
	if _, err := ParseTraceparent("00-abc-def"); err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestParseTraceparentRejectsBadLength(t *testing.T) {
	if _, err := ParseTraceparent("00-abc-def-01"); err != ErrInvalidLength {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
}
