// Package tracectx implements W3C-style trace identifiers and the
// traceparent propagation header used to carry a trace context across
// process boundaries.
package tracectx

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

// Errors returned by the hex and traceparent codecs.
var (
	ErrInvalidLength      = errors.New("tracectx: invalid id length")
	ErrInvalidHex         = errors.New("tracectx: invalid hex encoding")
	ErrInvalidFormat      = errors.New("tracectx: invalid traceparent format")
	ErrUnsupportedVersion = errors.New("tracectx: unsupported traceparent version")
)

const (
	traceIDBytes = 16
	spanIDBytes  = 8
	traceIDHex   = traceIDBytes * 2
	spanIDHex    = spanIDBytes * 2
)

// TraceID is a 128-bit opaque identifier shared by every span in a trace.
type TraceID [traceIDBytes]byte

// SpanID is a 64-bit opaque identifier for a single span.
type SpanID [spanIDBytes]byte

// NewTraceID fills a TraceID from a cryptographically strong RNG.
// Generation failure is treated as fatal to the caller, matching the
// original source's getrandom().expect(...) behavior.
func NewTraceID() TraceID {
	var id TraceID
	if _, err := rand.Read(id[:]); err != nil {
		panic("tracectx: failed to generate trace id: " + err.Error())
	}
	return id
}

// NewSpanID fills a SpanID from a cryptographically strong RNG.
func NewSpanID() SpanID {
	var id SpanID
	if _, err := rand.Read(id[:]); err != nil {
		panic("tracectx: failed to generate span id: " + err.Error())
	}
	return id
}

// Hex returns the lowercase, zero-padded hex encoding of the id.
func (t TraceID) Hex() string { return hex.EncodeToString(t[:]) }

// Hex returns the lowercase, zero-padded hex encoding of the id.
func (s SpanID) Hex() string { return hex.EncodeToString(s[:]) }

func (t TraceID) String() string { return t.Hex() }
func (s SpanID) String() string  { return s.Hex() }

// TraceIDFromHex parses a 32-character hex string (upper- or
// lowercase digits).
func TraceIDFromHex(s string) (TraceID, error) {
	var id TraceID
	if len(s) != traceIDHex {
		return id, ErrInvalidLength
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidHex
	}
	copy(id[:], b)
	return id, nil
}

// SpanIDFromHex parses a 16-character hex string (upper- or lowercase
// digits).
func SpanIDFromHex(s string) (SpanID, error) {
	var id SpanID
	if len(s) != spanIDHex {
		return id, ErrInvalidLength
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, ErrInvalidHex
	}
	copy(id[:], b)
	return id, nil
}

// MarshalJSON encodes the id as its hex string for wire compatibility.
func (t TraceID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Hex() + `"`), nil
}

// UnmarshalJSON decodes a hex string into the id.
func (t *TraceID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	id, err := TraceIDFromHex(s)
	if err != nil {
		return err
	}
	*t = id
	return nil
}

// MarshalJSON encodes the id as its hex string for wire compatibility.
func (s SpanID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.Hex() + `"`), nil
}

// UnmarshalJSON decodes a hex string into the id.
func (s *SpanID) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	id, err := SpanIDFromHex(str)
	if err != nil {
		return err
	}
	*s = id
	return nil
}
