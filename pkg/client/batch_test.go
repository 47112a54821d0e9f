package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nicktill/hindsight/pkg/trace"
	"github.com/nicktill/hindsight/pkg/tracectx"
)

type mockTransport struct {
	mu      sync.Mutex
	batches [][]*trace.Span
	delay   time.Duration
}

func (m *mockTransport) IngestSpans(ctx context.Context, spans []*trace.Span) (uint32, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]*trace.Span, len(spans))
	copy(batch, spans)
	m.batches = append(m.batches, batch)

	return uint32(len(spans)), nil
}

func (m *mockTransport) totalSpans() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, b := range m.batches {
		total += len(b)
	}
	return total
}

func (m *mockTransport) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func testSpan(name string) *trace.Span {
	ctx := tracectx.NewRootContext()
	now := trace.Now()
	return &trace.Span{
		TraceID:     ctx.TraceID,
		SpanID:      ctx.SpanID,
		Name:        name,
		StartTime:   now,
		EndTime:     &now,
		Attributes:  trace.NewAttributes(),
		Status:      trace.OKStatus,
		ServiceName: "svc",
	}
}

func TestBatcherFlushesWhenBatchSizeReached(t *testing.T) {
	transport := &mockTransport{}
	batcher := NewBatcher(transport)
	batcher.Start(context.Background())
	defer batcher.Stop()

	for i := 0; i < MaxBatchSize; i++ {
		batcher.Add(testSpan("op"))
	}

	deadline := time.Now().Add(time.Second)
	for transport.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if transport.totalSpans() != MaxBatchSize {
		t.Errorf("expected %d spans flushed, got %d", MaxBatchSize, transport.totalSpans())
	}
}

func TestBatcherPeriodicFlush(t *testing.T) {
	transport := &mockTransport{}
	batcher := NewBatcher(transport)
	batcher.Start(context.Background())
	defer batcher.Stop()

	for i := 0; i < 3; i++ {
		batcher.Add(testSpan("op"))
	}

	deadline := time.Now().Add(time.Second)
	for transport.batchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if transport.totalSpans() != 3 {
		t.Errorf("expected 3 spans flushed by ticker, got %d", transport.totalSpans())
	}
}

func TestBatcherStopFlushesRemainder(t *testing.T) {
	transport := &mockTransport{}
	batcher := NewBatcher(transport)
	batcher.Start(context.Background())

	for i := 0; i < 4; i++ {
		batcher.Add(testSpan("op"))
	}
	batcher.Stop()

	if transport.totalSpans() != 4 {
		t.Errorf("expected 4 spans flushed on stop, got %d", transport.totalSpans())
	}
}

func TestBatcherFlushOnEmptyIsNoop(t *testing.T) {
	transport := &mockTransport{}
	batcher := NewBatcher(transport)

	batcher.Flush()

	if transport.batchCount() != 0 {
		t.Errorf("expected no batches sent, got %d", transport.batchCount())
	}
}

func TestBatcherConcurrentAddDoesNotLoseSpans(t *testing.T) {
	transport := &mockTransport{delay: 10 * time.Millisecond}
	batcher := NewBatcher(transport)
	batcher.Start(context.Background())
	defer batcher.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const perGoroutine = 50

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				batcher.Add(testSpan("op"))
			}
		}()
	}
	wg.Wait()
	batcher.Stop()

	if got := transport.totalSpans(); got != goroutines*perGoroutine {
		t.Errorf("expected %d spans total, got %d", goroutines*perGoroutine, got)
	}
	if batcher.flushing.Load() {
		t.Error("flushing flag left set; indicates a concurrency bug")
	}
}

func TestBatcherContextCancellationStopsCleanly(t *testing.T) {
	transport := &mockTransport{}
	batcher := NewBatcher(transport)
	ctx, cancel := context.WithCancel(context.Background())
	batcher.Start(ctx)

	for i := 0; i < 3; i++ {
		batcher.Add(testSpan("op"))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		batcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() hung after context cancellation")
	}

	if transport.totalSpans() != 3 {
		t.Errorf("expected 3 spans flushed on stop, got %d", transport.totalSpans())
	}
}
