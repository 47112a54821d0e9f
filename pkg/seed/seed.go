// Package seed loads a fixed set of representative traces into a
// TraceStore for local development and manual exploration of the
// server's query surface without needing a running client.
package seed

import (
	"time"

	"github.com/nicktill/hindsight/pkg/store"
	"github.com/nicktill/hindsight/pkg/trace"
	"github.com/nicktill/hindsight/pkg/tracectx"
)

// Load ingests the fixture traces into s. Spans are timestamped
// relative to the moment Load is called, so every run produces traces
// that look recent regardless of when the server started.
func Load(s *store.TraceStore) error {
	now := uint64(time.Now().UnixNano())

	for _, spans := range fixtures(now) {
		if _, err := s.Ingest(spans); err != nil {
			return err
		}
	}
	return nil
}

// spanSpec is the fixture-authoring shorthand: an offset from the
// fixture's own start time rather than an absolute timestamp, so each
// trace reads top-to-bottom as a timeline.
type spanSpec struct {
	name        string
	service     string
	parent      int // index into the trace's spans, -1 for root
	startOffset uint64
	endOffset   uint64 // 0 means still open (no end time)
	attrs       []attrSpec
	events      []eventSpec
	err         string // non-empty marks the span as an error status
}

type attrSpec struct {
	key   string
	value trace.AttributeValue
}

type eventSpec struct {
	name       string
	timeOffset uint64
	attrs      []attrSpec
}

func str(key, value string) attrSpec  { return attrSpec{key, trace.StringValue(value)} }
func intAttr(key string, value int64) attrSpec { return attrSpec{key, trace.IntValue(value)} }
func boolAttr(key string, value bool) attrSpec { return attrSpec{key, trace.BoolValue(value)} }

// build turns a trace's span specs into real spans sharing a fresh
// trace_id, wiring up parent/child span_ids by index.
func build(start uint64, specs []spanSpec) []*trace.Span {
	traceID := tracectx.NewTraceID()
	spanIDs := make([]tracectx.SpanID, len(specs))
	for i := range specs {
		spanIDs[i] = tracectx.NewSpanID()
	}

	spans := make([]*trace.Span, len(specs))
	for i, spec := range specs {
		var parent *tracectx.SpanID
		if spec.parent >= 0 {
			parent = &spanIDs[spec.parent]
		}

		attrs := trace.NewAttributes()
		for _, a := range spec.attrs {
			attrs.Set(a.key, a.value)
		}

		var events []trace.SpanEvent
		for _, e := range spec.events {
			eventAttrs := trace.NewAttributes()
			for _, a := range e.attrs {
				eventAttrs.Set(a.key, a.value)
			}
			events = append(events, trace.SpanEvent{
				Name:       e.name,
				Timestamp:  trace.Timestamp(start + e.timeOffset),
				Attributes: eventAttrs,
			})
		}

		status := trace.OKStatus
		if spec.err != "" {
			status = trace.ErrorStatus(spec.err)
		}

		var endTime *trace.Timestamp
		if spec.endOffset != 0 {
			e := trace.Timestamp(start + spec.endOffset)
			endTime = &e
		}

		spans[i] = &trace.Span{
			TraceID:      traceID,
			SpanID:       spanIDs[i],
			ParentSpanID: parent,
			Name:         spec.name,
			StartTime:    trace.Timestamp(start + spec.startOffset),
			EndTime:      endTime,
			Attributes:   attrs,
			Events:       events,
			Status:       status,
			ServiceName:  spec.service,
		}
	}
	return spans
}

// fixtures returns a varied set of traces: fast and slow, single- and
// multi-service, clean and erroring, shallow and deeply nested. No
// fixture carries a framework marker attribute, so every one of them
// classifies as TraceGeneric.
func fixtures(now uint64) [][]*trace.Span {
	var traces [][]*trace.Span

	// Fast successful HTTP request, two spans.
	traces = append(traces, build(now-50_000_000, []spanSpec{
		{
			name: "GET /api/users", service: "api-gateway", parent: -1,
			startOffset: 0, endOffset: 12_000_000,
			attrs: []attrSpec{str("http.method", "GET"), str("http.url", "/api/users"), intAttr("http.status_code", 200)},
		},
		{
			name: "db.query users", service: "api-gateway", parent: 0,
			startOffset: 2_000_000, endOffset: 10_000_000,
			attrs: []attrSpec{str("db.system", "postgresql"), str("db.statement", "SELECT * FROM users LIMIT 10")},
		},
	}))

	// Slow request stuck behind a database lock, with a mid-span event.
	traces = append(traces, build(now-2_500_000_000, []spanSpec{
		{
			name: "POST /api/orders", service: "order-service", parent: -1,
			startOffset: 0, endOffset: 2_345_000_000,
			attrs: []attrSpec{str("http.method", "POST"), str("http.url", "/api/orders"), intAttr("http.status_code", 200)},
		},
		{
			name: "db.transaction", service: "order-service", parent: 0,
			startOffset: 50_000_000, endOffset: 2_340_000_000,
			attrs: []attrSpec{str("db.system", "postgresql"), str("db.operation", "INSERT")},
			events: []eventSpec{
				{name: "Waiting for lock", timeOffset: 100_000_000, attrs: []attrSpec{str("lock.type", "ROW EXCLUSIVE")}},
			},
		},
	}))

	// Failed request, single span, exception event.
	traces = append(traces, build(now-15_000_000, []spanSpec{
		{
			name: "GET /api/user/999", service: "user-service", parent: -1,
			startOffset: 0, endOffset: 8_000_000,
			attrs: []attrSpec{
				str("http.method", "GET"), str("http.url", "/api/user/999"),
				intAttr("http.status_code", 404), boolAttr("error", true), str("error.message", "User not found"),
			},
			events: []eventSpec{
				{name: "exception", timeOffset: 5_000_000, attrs: []attrSpec{
					str("exception.type", "UserNotFoundException"), str("exception.message", "No user with ID 999"),
				}},
			},
			err: "User not found",
		},
	}))

	// Complex checkout flow fanning out across four services.
	traces = append(traces, build(now-500_000_000, []spanSpec{
		{name: "POST /api/checkout", service: "api-gateway", parent: -1, startOffset: 0, endOffset: 485_000_000,
			attrs: []attrSpec{str("http.method", "POST"), str("http.url", "/api/checkout")}},
		{name: "validate_cart", service: "cart-service", parent: 0, startOffset: 5_000_000, endOffset: 50_000_000},
		{name: "check_inventory", service: "inventory-service", parent: 0, startOffset: 55_000_000, endOffset: 175_000_000,
			attrs: []attrSpec{intAttr("items.checked", 3)}},
		{name: "process_payment", service: "payment-service", parent: 0, startOffset: 180_000_000, endOffset: 460_000_000,
			attrs: []attrSpec{str("payment.provider", "stripe"), str("payment.amount", "99.99")}},
		{name: "create_order", service: "order-service", parent: 0, startOffset: 455_000_000, endOffset: 485_000_000,
			attrs: []attrSpec{str("order.id", "ORD-12345")}},
	}))

	// Sub-millisecond cache hit.
	traces = append(traces, build(now-2_000_000, []spanSpec{
		{name: "GET /api/config", service: "config-service", parent: -1, startOffset: 0, endOffset: 800_000,
			attrs: []attrSpec{str("http.method", "GET"), boolAttr("cache.hit", true)}},
	}))

	// Gateway timeout calling an external dependency.
	traces = append(traces, build(now-5_100_000_000, []spanSpec{
		{name: "GET /api/external", service: "api-gateway", parent: -1, startOffset: 0, endOffset: 5_050_000_000,
			attrs: []attrSpec{str("http.method", "GET"), intAttr("http.status_code", 504)}, err: "Gateway timeout"},
		{name: "http.call external-api", service: "api-gateway", parent: 0, startOffset: 10_000_000, endOffset: 5_040_000_000,
			attrs: []attrSpec{str("http.url", "https://external-api.example.com")},
			events: []eventSpec{{name: "timeout", timeOffset: 5_000_000_000, attrs: []attrSpec{str("timeout.duration", "5s")}}},
			err:    "Request timeout after 5s"},
	}))

	// Eight levels deep, error propagating from the network layer up.
	traces = append(traces, build(now-1_200_000_000, []spanSpec{
		{name: "GET /api/report", service: "api-gateway", parent: -1, startOffset: 0, endOffset: 1_180_000_000,
			attrs: []attrSpec{str("http.method", "GET")}, err: "Child operation failed"},
		{name: "generate_report", service: "report-service", parent: 0, startOffset: 10_000_000, endOffset: 1_170_000_000,
			attrs: []attrSpec{str("report.type", "sales")}, err: "Data fetch failed"},
		{name: "aggregate_data", service: "data-aggregator", parent: 1, startOffset: 50_000_000, endOffset: 1_160_000_000,
			err: "Query failed"},
		{name: "execute_query", service: "query-engine", parent: 2, startOffset: 100_000_000, endOffset: 1_150_000_000,
			err: "Connection failed"},
		{name: "get_connection", service: "query-engine", parent: 3, startOffset: 120_000_000, endOffset: 1_140_000_000,
			err: "Pool exhausted"},
		{name: "db.connect", service: "query-engine", parent: 4, startOffset: 150_000_000, endOffset: 1_130_000_000,
			attrs: []attrSpec{str("db.system", "postgresql")}, err: "Timeout establishing connection"},
		{name: "tcp.connect", service: "query-engine", parent: 5, startOffset: 180_000_000, endOffset: 1_120_000_000,
			attrs: []attrSpec{str("peer.address", "10.0.1.5:5432")}, err: "Connection refused"},
		{name: "socket.connect", service: "query-engine", parent: 6, startOffset: 200_000_000, endOffset: 1_100_000_000,
			events: []eventSpec{{name: "connection_refused", timeOffset: 1_000_000_000, attrs: []attrSpec{str("errno", "ECONNREFUSED")}}},
			err:    "ECONNREFUSED"},
	}))

	// Parallel fan-out: four independent fetches under one dashboard
	// request, recommendations on the critical path.
	traces = append(traces, build(now-650_000_000, []spanSpec{
		{name: "GET /api/dashboard", service: "api-gateway", parent: -1, startOffset: 0, endOffset: 645_000_000,
			attrs: []attrSpec{str("http.method", "GET")}},
		{name: "fetch_user_info", service: "user-service", parent: 0, startOffset: 5_000_000, endOffset: 50_000_000},
		{name: "fetch_recent_orders", service: "order-service", parent: 0, startOffset: 7_000_000, endOffset: 325_000_000,
			attrs: []attrSpec{intAttr("limit", 20)}},
		{name: "fetch_recommendations", service: "recommendation-service", parent: 0, startOffset: 6_000_000, endOffset: 640_000_000,
			attrs: []attrSpec{str("algo", "collaborative_filtering"), intAttr("candidates", 1000)}},
		{name: "fetch_notifications", service: "notification-service", parent: 0, startOffset: 8_000_000, endOffset: 33_000_000,
			attrs: []attrSpec{boolAttr("unread_only", true)}},
	}))

	// Authentication failure.
	traces = append(traces, build(now-8_000_000, []spanSpec{
		{name: "POST /api/admin", service: "api-gateway", parent: -1, startOffset: 0, endOffset: 3_500_000,
			attrs: []attrSpec{str("http.method", "POST"), intAttr("http.status_code", 403), boolAttr("error", true)},
			events: []eventSpec{{name: "auth_failed", timeOffset: 2_000_000, attrs: []attrSpec{
				str("reason", "insufficient_permissions"), str("required_role", "admin"),
			}}},
			err: "Forbidden: insufficient permissions",
		},
	}))

	// A span still in flight: no end time, so it has no duration yet
	// and cannot complete a trace on its own.
	traces = append(traces, build(now-1_000_000, []spanSpec{
		{name: "GET /api/stream/export", service: "export-service", parent: -1, startOffset: 0, endOffset: 0,
			attrs: []attrSpec{str("http.method", "GET")}},
	}))

	return traces
}
