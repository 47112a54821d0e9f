// Package rpc realizes the transport-agnostic method set — ingest_spans,
// get_trace, list_traces, stream_traces, ping — over HTTP and
// WebSocket, following the teacher's gorilla/mux router-with-CORS-
// middleware convention.
package rpc

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/hindsight/pkg/hindsightlog"
	"github.com/nicktill/hindsight/pkg/store"
)

var log = hindsightlog.New("rpc")

// Server exposes a TraceStore over HTTP and WebSocket.
type Server struct {
	store *store.TraceStore
}

// NewServer builds a Server backed by store.
func NewServer(s *store.TraceStore) *Server {
	return &Server{store: s}
}

// Router builds the gorilla/mux router implementing the method table:
//
//	POST /v1/spans             ingest_spans
//	GET  /v1/traces/{trace_id} get_trace
//	GET  /v1/traces            list_traces
//	GET  /v1/stream            stream_traces (upgrades to WebSocket)
//	GET  /v1/ping              ping
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(corsMiddleware)

	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/spans", s.handleIngestSpans).Methods(http.MethodPost)
	api.HandleFunc("/traces/{trace_id}", s.handleGetTrace).Methods(http.MethodGet)
	api.HandleFunc("/traces", s.handleListTraces).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.handleStreamTraces).Methods(http.MethodGet)
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewHTTPServer wraps Router in an *http.Server bound to addr, using
// the same read/write timeout convention as the teacher's entry point.
func NewHTTPServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
