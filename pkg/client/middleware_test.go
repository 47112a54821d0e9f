package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nicktill/hindsight/pkg/tracectx"
)

func TestHTTPMiddlewareStartsFreshRootWithoutHeader(t *testing.T) {
	transport := &mockTransport{}
	tracer := NewTracer(context.Background(), transport)

	handler := HTTPMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	tracer.Close()

	if transport.totalSpans() != 1 {
		t.Fatalf("expected 1 span recorded, got %d", transport.totalSpans())
	}
	if transport.batches[0][0].ParentSpanID != nil {
		t.Error("expected a fresh root span with no parent")
	}
}

func TestHTTPMiddlewareContinuesIncomingTrace(t *testing.T) {
	transport := &mockTransport{}
	tracer := NewTracer(context.Background(), transport)

	parent := tracectx.NewRootContext()

	var sawTraceID tracectx.TraceID
	handler := HTTPMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	req.Header.Set(TraceparentHeader, parent.ToTraceparent())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	tracer.Close()

	batches := transport.batches
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected exactly one flushed span, got %v", batches)
	}
	sawTraceID = batches[0][0].TraceID
	if sawTraceID != parent.TraceID {
		t.Errorf("expected continued trace id %s, got %s", parent.TraceID, sawTraceID)
	}
}

func TestHTTPMiddlewareMarksServerErrorStatus(t *testing.T) {
	transport := &mockTransport{}
	tracer := NewTracer(context.Background(), transport)

	handler := HTTPMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	tracer.Close()

	batches := transport.batches
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected exactly one flushed span, got %v", batches)
	}
	if !batches[0][0].Status.IsError() {
		t.Errorf("expected span status to be an error after a 5xx response")
	}
}

func TestHTTPClientMiddlewarePropagatesTraceparent(t *testing.T) {
	transport := &mockTransport{}
	tracer := NewTracer(context.Background(), transport)
	defer tracer.Close()

	var seenHeader string
	upstream := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seenHeader = req.Header.Get(TraceparentHeader)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	rt := HTTPClientMiddleware(tracer, upstream)
	req := httptest.NewRequest(http.MethodGet, "http://downstream/items", nil)

	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if seenHeader == "" {
		t.Fatal("expected a traceparent header to be set on the outgoing request")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
