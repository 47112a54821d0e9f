// Package client implements the span-producing side of the system:
// a Tracer that builds spans and hands them to a background Batcher,
// which periodically ships them to the server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nicktill/hindsight/pkg/trace"
)

// Transport sends a batch of finished spans to the collector and
// reports how many it accepted.
type Transport interface {
	IngestSpans(ctx context.Context, spans []*trace.Span) (uint32, error)
}

// HTTPTransport implements Transport over the collector's
// POST /v1/spans endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport builds a Transport that POSTs to
// "<baseURL>/v1/spans".
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		endpoint: baseURL + "/v1/spans",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type ingestResponse struct {
	Accepted uint32 `json:"accepted"`
}

// IngestSpans posts spans as a JSON array and decodes the accepted count.
func (t *HTTPTransport) IngestSpans(ctx context.Context, spans []*trace.Span) (uint32, error) {
	if len(spans) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(spans)
	if err != nil {
		return 0, fmt.Errorf("client: failed to marshal spans: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("client: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client: ingest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("client: ingest request returned status %d", resp.StatusCode)
	}

	var out ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("client: failed to decode ingest response: %w", err)
	}
	return out.Accepted, nil
}
