// Command hindsight-loadgen generates representative span traffic
// against a running hindsightd, for manual smoke-testing the server
// and its UI without wiring up a real instrumented service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicktill/hindsight/pkg/client"
	"github.com/nicktill/hindsight/pkg/trace"
	"github.com/nicktill/hindsight/pkg/tracectx"
)

func main() {
	endpoint := flag.String("endpoint", "http://127.0.0.1:1990", "hindsightd base URL")
	interval := flag.Duration("interval", 2*time.Second, "time between simulated requests")
	flag.Parse()

	transport := client.NewHTTPTransport(*endpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiTracer := client.NewTracer(ctx, transport)
	defer apiTracer.Close()
	dbTracer := client.NewTracer(ctx, transport)
	defer dbTracer.Close()
	cacheTracer := client.NewTracer(ctx, transport)
	defer cacheTracer.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		handleGetUsers(w, r, dbTracer, cacheTracer)
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		handleGetOrders(w, r, dbTracer)
	})

	handler := client.HTTPMiddleware(apiTracer)(mux)

	go func() {
		log.Println("loadgen API server listening on :8081")
		if err := http.ListenAndServe(":8081", handler); err != nil && err != http.ErrServerClosed {
			log.Fatalf("loadgen server failed: %v", err)
		}
	}()

	go simulateTraffic(ctx, *interval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("loadgen stopping")
}

// simulateTraffic drives requests into the loadgen's own /api/users and
// /api/orders endpoints at a steady rate, cycling through both so a
// mix of trace shapes accumulates on the server.
func simulateTraffic(ctx context.Context, interval time.Duration) {
	time.Sleep(500 * time.Millisecond)

	endpoints := []string{"/api/users", "/api/orders"}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count++
			endpoint := endpoints[count%len(endpoints)]
			go func(ep string, n int) {
				resp, err := http.Get("http://localhost:8081" + ep)
				if err != nil {
					log.Printf("request #%d to %s failed: %v", n, ep, err)
					return
				}
				defer resp.Body.Close()
				log.Printf("request #%d: %s -> %s", n, ep, resp.Status)
			}(endpoint, count)
		}
	}
}

func handleGetUsers(w http.ResponseWriter, r *http.Request, dbTracer, cacheTracer *client.Tracer) {
	cacheSpan := cacheTracer.Span("cache.lookup").WithParent(traceparentFromRequest(r)).Start()
	time.Sleep(time.Duration(rand.Intn(5)+1) * time.Millisecond)

	if rand.Float32() < 0.3 {
		cacheSpan.AddEvent("cache.hit")
		cacheSpan.End()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"users": [{"id": 1, "name": "John"}]}`)
		return
	}
	cacheSpan.AddEvent("cache.miss")
	cacheSpan.End()

	dbSpan := dbTracer.Span("db.query.users").
		WithParent(traceparentFromRequest(r)).
		WithAttribute("db.query", trace.StringValue("SELECT * FROM users")).
		WithAttribute("db.table", trace.StringValue("users")).
		Start()
	time.Sleep(time.Duration(rand.Intn(20)+10) * time.Millisecond)

	if rand.Float32() < 0.1 {
		dbSpan.SetError("connection timeout")
		dbSpan.End()
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	dbSpan.End()
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"users": [{"id": 1, "name": "John"}, {"id": 2, "name": "Jane"}]}`)
}

// traceparentFromRequest resolves the span context the handler's own
// spans should be children of: the inbound traceparent header if the
// caller sent one (apiTracer's own middleware already started a span
// for this request but doesn't rewrite r's headers with its context),
// otherwise a fresh root so standalone loadgen traffic still produces
// a valid trace.
func traceparentFromRequest(r *http.Request) tracectx.TraceContext {
	if header := r.Header.Get(client.TraceparentHeader); header != "" {
		if ctx, err := tracectx.ParseTraceparent(header); err == nil {
			return ctx
		}
	}
	return tracectx.NewRootContext()
}

func handleGetOrders(w http.ResponseWriter, r *http.Request, dbTracer *client.Tracer) {
	dbSpan := dbTracer.Span("db.query.orders").
		WithParent(traceparentFromRequest(r)).
		WithAttribute("db.query", trace.StringValue("SELECT * FROM orders")).
		WithAttribute("db.table", trace.StringValue("orders")).
		Start()
	time.Sleep(time.Duration(rand.Intn(50)+20) * time.Millisecond)
	dbSpan.End()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"orders": [{"id": 1, "amount": 99.99}]}`)
}
