package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nicktill/hindsight/pkg/store"
	"github.com/nicktill/hindsight/pkg/trace"
	"github.com/nicktill/hindsight/pkg/tracectx"
)

type ingestResponse struct {
	Accepted uint32 `json:"accepted"`
}

// handleIngestSpans implements ingest_spans: applies the self-tracing
// filter, then ingests whatever remains, but reports the pre-filter
// input length as accepted — this is the observed, spec-preserved
// contract, not a bug: the reported count means "accepted for
// processing", not "currently queryable".
func (s *Server) handleIngestSpans(w http.ResponseWriter, r *http.Request) {
	var spans []*trace.Span
	if err := json.NewDecoder(r.Body).Decode(&spans); err != nil {
		respondError(w, http.StatusBadRequest, "invalid span payload: "+err.Error())
		return
	}

	inputLength := uint32(len(spans))

	filtered := make([]*trace.Span, 0, len(spans))
	for _, span := range spans {
		if span.ServiceName == store.ReservedServiceName {
			continue
		}
		filtered = append(filtered, span)
	}

	if _, err := s.store.Ingest(filtered); err != nil {
		respondError(w, http.StatusInternalServerError, "ingest failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, ingestResponse{Accepted: inputLength})
}

// handleGetTrace implements get_trace.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	traceIDHex := mux.Vars(r)["trace_id"]
	traceID, err := tracectx.TraceIDFromHex(traceIDHex)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trace_id: "+err.Error())
		return
	}

	t, ok, err := s.store.GetTrace(traceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "get_trace failed: "+err.Error())
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "trace not found")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// handleListTraces implements list_traces, parsing filter fields from
// query parameters.
func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTraceFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := s.store.ListTraces(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_traces failed: "+err.Error())
		return
	}
	if summaries == nil {
		summaries = []trace.TraceSummary{}
	}

	respondJSON(w, http.StatusOK, summaries)
}

func parseTraceFilter(r *http.Request) (trace.TraceFilter, error) {
	q := r.URL.Query()
	var filter trace.TraceFilter

	if service := q.Get("service"); service != "" {
		filter.Service = &service
	}

	if raw := q.Get("min_duration_ns"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errBadQueryParam("min_duration_ns")
		}
		filter.MinDurationNs = &v
	}

	if raw := q.Get("max_duration_ns"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errBadQueryParam("max_duration_ns")
		}
		filter.MaxDurationNs = &v
	}

	if raw := q.Get("has_errors"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errBadQueryParam("has_errors")
		}
		filter.HasErrors = &v
	}

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errBadQueryParam("limit")
		}
		filter.Limit = &v
	}

	return filter, nil
}

type badQueryParamError struct{ param string }

func (e badQueryParamError) Error() string { return "invalid query parameter: " + e.param }

func errBadQueryParam(param string) error { return badQueryParamError{param: param} }

// handlePing implements ping.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, "pong")
}
