// Command hindsightd runs the trace collection and query server: it
// accepts spans over HTTP, assembles them into traces, and serves
// get_trace/list_traces/stream_traces over the same port.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicktill/hindsight/pkg/config"
	"github.com/nicktill/hindsight/pkg/hindsightlog"
	"github.com/nicktill/hindsight/pkg/rpc"
	"github.com/nicktill/hindsight/pkg/seed"
	"github.com/nicktill/hindsight/pkg/store"
)

const shutdownTimeout = 30 * time.Second

var log = hindsightlog.New("hindsightd")

func main() {
	httpPort := flag.String("http-port", config.DefaultHTTPPort, "port for HTTP + WebSocket (web UI and client SDKs)")
	tcpPort := flag.String("tcp-port", "1991", "reserved for a future native TCP transport; accepted but unused")
	host := flag.String("host", config.DefaultHost, "host to bind to")
	ttlSeconds := flag.Int("ttl", int(config.DefaultTraceTTL/time.Second), "how long a trace is retained after its most recent span arrives, in seconds")
	seedData := flag.Bool("seed", false, "populate the store with fixture traces on startup")
	flag.Parse()

	_ = tcpPort // no TCP transport in this build; flag kept for CLI compatibility

	ttl := time.Duration(*ttlSeconds) * time.Second
	log.Info("starting hindsightd (http=%s:%s ttl=%s)", *host, *httpPort, ttl.String())

	traceStore, err := store.New(ttl)
	if err != nil {
		log.Fatal("failed to initialize trace store: %v", err)
	}
	defer traceStore.Close()

	if *seedData {
		if err := seed.Load(traceStore); err != nil {
			log.Fatal("failed to load seed data: %v", err)
		}
		log.Info("seed data loaded")
	}

	server := rpc.NewServer(traceStore)
	httpServer := rpc.NewHTTPServer(*host+":"+*httpPort, server)

	go func() {
		log.Info("listening on http://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown did not complete cleanly: %v", err)
	}

	log.Info("hindsightd stopped")
}
