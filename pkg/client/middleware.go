package client

import (
	"net/http"
	"strconv"

	"github.com/nicktill/hindsight/pkg/trace"
	"github.com/nicktill/hindsight/pkg/tracectx"
)

// TraceparentHeader is the standard W3C header name this middleware
// reads and writes trace context under.
const TraceparentHeader = "traceparent"

// HTTPMiddleware wraps an HTTP handler with server-side tracing: it
// extracts an incoming traceparent header if present, continuing that
// trace instead of starting a fresh root, records request/response
// metadata on the span, and marks the span as an error on a 5xx
// response.
func HTTPMiddleware(tracer *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			builder := tracer.Span(r.Method + " " + r.URL.Path)

			if header := r.Header.Get(TraceparentHeader); header != "" {
				if parent, err := tracectx.ParseTraceparent(header); err == nil {
					builder = builder.WithParent(parent)
				}
			}

			active := builder.
				WithAttribute("http.method", trace.StringValue(r.Method)).
				WithAttribute("http.url", trace.StringValue(r.URL.Path)).
				WithAttribute("http.host", trace.StringValue(r.Host)).
				Start()
			defer active.End()

			wrapper := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			if wrapper.statusCode >= http.StatusInternalServerError {
				active.SetError("HTTP " + strconv.Itoa(wrapper.statusCode))
			}
		})
	}
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// HTTPClientMiddleware wraps an http.RoundTripper to start a client
// span around each outgoing request and propagate its trace context
// via the traceparent header, so a downstream service's HTTPMiddleware
// continues the same trace.
func HTTPClientMiddleware(tracer *Tracer, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &tracingRoundTripper{tracer: tracer, next: next}
}

type tracingRoundTripper struct {
	tracer *Tracer
	next   http.RoundTripper
}

func (t *tracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	active := t.tracer.Span(req.Method + " " + req.URL.Path).
		WithAttribute("http.method", trace.StringValue(req.Method)).
		WithAttribute("http.url", trace.StringValue(req.URL.String())).
		Start()
	defer active.End()

	req = req.Clone(req.Context())
	req.Header.Set(TraceparentHeader, active.Context().ToTraceparent())

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		active.SetError(err.Error())
		return resp, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		active.SetError("HTTP " + strconv.Itoa(resp.StatusCode))
	}

	return resp, err
}
