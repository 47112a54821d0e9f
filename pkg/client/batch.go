package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicktill/hindsight/pkg/trace"
)

// MaxBatchSize is the span-count threshold that triggers an immediate
// flush, independent of the flush ticker.
const MaxBatchSize = 100

// FlushInterval is how often the batcher flushes a non-empty batch
// even if it hasn't reached MaxBatchSize.
const FlushInterval = 100 * time.Millisecond

// Batcher buffers finished spans and periodically ships them to a
// Transport. Producers never block: Add appends to an unbounded
// in-memory slice under a mutex and returns immediately. RPC failures
// are swallowed — span export is best-effort telemetry and must never
// surface to application code.
type Batcher struct {
	transport Transport

	mu    sync.Mutex
	spans []*trace.Span

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	flushing atomic.Bool
	inflight sync.WaitGroup
}

// NewBatcher builds a Batcher that is not yet running; call Start.
func NewBatcher(transport Transport) *Batcher {
	return &Batcher{
		transport: transport,
		spans:     make([]*trace.Span, 0, MaxBatchSize),
		done:      make(chan struct{}),
	}
}

// Start launches the batcher's flush loop. It stops when ctx is
// canceled.
func (b *Batcher) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)
	go b.flushLoop()
}

// Add appends span to the pending batch, triggering an immediate
// background flush if the batch has reached MaxBatchSize and no flush
// is already in progress.
func (b *Batcher) Add(span *trace.Span) {
	b.mu.Lock()
	b.spans = append(b.spans, span)
	shouldFlush := len(b.spans) >= MaxBatchSize
	b.mu.Unlock()

	if shouldFlush && b.flushing.CompareAndSwap(false, true) {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			b.flush()
			b.flushing.Store(false)
		}()
	}
}

// Flush sends any pending spans synchronously and waits for the send
// to complete.
func (b *Batcher) Flush() {
	b.flush()
}

// Stop cancels the flush loop, waits for it and for any in-flight
// size-triggered flush to finish, then flushes any remainder exactly
// once.
func (b *Batcher) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
	b.inflight.Wait()
	b.flush()
}

func (b *Batcher) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if b.flushing.CompareAndSwap(false, true) {
				b.flush()
				b.flushing.Store(false)
			}
		}
	}
}

func (b *Batcher) flush() {
	b.mu.Lock()
	if len(b.spans) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]*trace.Span, len(b.spans))
	copy(batch, b.spans)
	b.spans = b.spans[:0]
	b.mu.Unlock()

	// Deliberately not derived from b.ctx: Stop cancels b.ctx before
	// issuing the final flush, and a flush running off an
	// already-canceled context would fail instantly instead of
	// actually delivering the remainder.
	sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Best-effort: a failed export is swallowed, never surfaced to the
	// application that produced the spans.
	_, _ = b.transport.IngestSpans(sendCtx, batch)
}
