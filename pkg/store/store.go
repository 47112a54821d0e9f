// Package store implements the concurrent trace store: incremental
// trace assembly on every ingest, a TTL sweeper, filtered listing, and
// ownership of the live event broadcaster. Spans and traces are kept
// in an in-memory BadgerDB instance rather than a hand-rolled sharded
// map or sync.Map — Badger's LSM engine gives per-key atomicity and
// safe concurrent readers/writers out of the box, and in-memory mode
// never touches disk, so this satisfies both the "no persistent
// storage" constraint and the "no whole-map locks" constraint in one
// move (see DESIGN.md).
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/nicktill/hindsight/pkg/tracectx"
	"github.com/nicktill/hindsight/pkg/trace"
)

// ReservedServiceName is filtered out of every ingest call: spans
// reported under this service name are assumed to be the collector
// tracing itself, and dropping them breaks that feedback loop.
const ReservedServiceName = "hindsight-server"

// SweepInterval is how often the TTL sweeper scans for expired traces.
const SweepInterval = 60 * time.Second

const (
	spanKeyPrefix  = "s:"
	traceKeyPrefix = "t:"
)

// TraceStore is the concurrent in-memory index of spans and traces. It
// owns the event broadcaster and the background TTL sweeper.
type TraceStore struct {
	db          *badger.DB
	ttl         time.Duration
	broadcaster *trace.Broadcaster

	closeOnce sync.Once
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// storedTrace is the on-disk (well, in-memory-Badger) envelope around
// an assembled Trace: Badger's own TTL entry covers expiry as defense
// in depth, but CreatedAt is what the sweeper actually keys eviction
// on.
type storedTrace struct {
	TraceID   tracectx.TraceID `json:"trace_id"`
	Spans     []*trace.Span    `json:"spans"`
	RootSpan  tracectx.SpanID  `json:"root_span"`
	StartTime trace.Timestamp  `json:"start_time"`
	EndTime   *trace.Timestamp `json:"end_time,omitempty"`
	CreatedAt int64            `json:"created_at"`
}

func newStoredTrace(t *trace.Trace, createdAt time.Time) storedTrace {
	return storedTrace{
		TraceID:   t.TraceID,
		Spans:     t.Spans,
		RootSpan:  t.RootSpan,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		CreatedAt: createdAt.UnixNano(),
	}
}

func (st storedTrace) toTrace() *trace.Trace {
	return &trace.Trace{
		TraceID:   st.TraceID,
		Spans:     st.Spans,
		RootSpan:  st.RootSpan,
		StartTime: st.StartTime,
		EndTime:   st.EndTime,
	}
}

// New opens a TraceStore backed by an in-memory Badger instance and
// starts its TTL sweeper. ttl of zero or less disables expiry (traces
// are retained indefinitely).
func New(ttl time.Duration) (*TraceStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open in-memory badger: %w", err)
	}

	s := &TraceStore{
		db:          db,
		ttl:         ttl,
		broadcaster: trace.NewBroadcaster(),
		stopSweep:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}

	go s.runSweeper()

	return s, nil
}

// Close stops the sweeper and releases the backing Badger instance.
func (s *TraceStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
		<-s.sweepDone
	})
	return s.db.Close()
}

// badgerTTL pads ttl by one second: Badger truncates an entry's expiry
// to whole Unix seconds, so an unpadded sub-second ttl would expire the
// entry the moment it is written, before the sweeper ever sees it.
func badgerTTL(ttl time.Duration) time.Duration {
	return ttl + time.Second
}

func spanKey(id tracectx.SpanID) []byte {
	return []byte(spanKeyPrefix + id.Hex())
}

func traceKey(id tracectx.TraceID) []byte {
	return []byte(traceKeyPrefix + id.Hex())
}

// hasSpan reports whether span_id is already present in the span map,
// independent of which trace it belongs to — used to decide whether an
// incoming span starts a new trace.
func (s *TraceStore) hasSpan(id tracectx.SpanID) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(spanKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *TraceStore) putSpan(span *trace.Span) error {
	data, err := json.Marshal(span)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(spanKey(span.SpanID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(badgerTTL(s.ttl))
		}
		return txn.SetEntry(entry)
	})
}

// spansByTrace scans every stored span and returns those whose
// trace_id matches. Badger does not let us prefix-scan by trace_id
// (keys are indexed by span_id), so this is a full scan over the span
// namespace; the spec's own reassembly rule ("gather every span in
// spans with matching trace_id") is inherently an O(n) operation.
func (s *TraceStore) spansByTrace(traceID tracectx.TraceID) ([]*trace.Span, error) {
	var spans []*trace.Span
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(spanKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var span trace.Span
				if err := json.Unmarshal(val, &span); err != nil {
					return err
				}
				if span.TraceID == traceID {
					spans = append(spans, &span)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return spans, err
}

func (s *TraceStore) putTrace(t *trace.Trace, createdAt time.Time) error {
	stored := newStoredTrace(t, createdAt)
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(traceKey(t.TraceID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(badgerTTL(s.ttl))
		}
		return txn.SetEntry(entry)
	})
}

// GetTrace returns a clone of the stored trace, or (nil, false) if no
// trace with that id is retained.
func (s *TraceStore) GetTrace(traceID tracectx.TraceID) (*trace.Trace, bool, error) {
	stored, ok, err := s.getStoredTrace(traceID)
	if !ok || err != nil {
		return nil, false, err
	}
	t := stored.toTrace()
	return t, true, nil
}

func (s *TraceStore) getStoredTrace(traceID tracectx.TraceID) (storedTrace, bool, error) {
	var out storedTrace
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(traceKey(traceID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &out); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	return out, found, err
}

// ListTraces applies filter to every retained trace and returns the
// matching summaries, newest first, bounded by filter.Limit (default
// trace.DefaultListLimit).
func (s *TraceStore) ListTraces(filter trace.TraceFilter) ([]trace.TraceSummary, error) {
	var summaries []trace.TraceSummary

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(traceKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var stored storedTrace
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				t := stored.toTrace()

				summary, ok := summarize(t, filter)
				if ok {
					summaries = append(summaries, summary)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StartTime > summaries[j].StartTime
	})

	limit := trace.DefaultListLimit
	if filter.Limit != nil {
		limit = *filter.Limit
	}
	if limit >= 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}

	return summaries, nil
}

// summarize applies the filter predicates in spec order and, if the
// trace passes every one, returns its TraceSummary.
func summarize(t *trace.Trace, filter trace.TraceFilter) (trace.TraceSummary, bool) {
	if filter.Service != nil {
		matched := false
		for _, s := range t.Spans {
			if s.ServiceName == *filter.Service {
				matched = true
				break
			}
		}
		if !matched {
			return trace.TraceSummary{}, false
		}
	}

	duration, known := t.DurationNanos()

	if filter.MinDurationNs != nil {
		if !known || duration < *filter.MinDurationNs {
			return trace.TraceSummary{}, false
		}
	}

	if filter.MaxDurationNs != nil {
		// An unknown duration passes this filter: "not yet known to be
		// too long."
		if known && duration > *filter.MaxDurationNs {
			return trace.TraceSummary{}, false
		}
	}

	hasErrors := t.HasErrors()
	if filter.HasErrors != nil && hasErrors != *filter.HasErrors {
		return trace.TraceSummary{}, false
	}

	var root *trace.Span
	for _, s := range t.Spans {
		if s.SpanID == t.RootSpan {
			root = s
			break
		}
	}
	if root == nil {
		return trace.TraceSummary{}, false
	}

	var durationPtr *uint64
	if known {
		d := duration
		durationPtr = &d
	}

	return trace.TraceSummary{
		TraceID:       t.TraceID,
		RootSpanName:  root.Name,
		ServiceName:   root.ServiceName,
		StartTime:     t.StartTime,
		DurationNanos: durationPtr,
		SpanCount:     len(t.Spans),
		HasErrors:     hasErrors,
		TraceType:     t.ClassifyType(),
	}, true
}

// SubscribeEvents hands out a new live subscription to trace lifecycle
// events.
func (s *TraceStore) SubscribeEvents() *trace.Subscription {
	return s.broadcaster.Subscribe()
}

// runSweeper periodically evicts traces older than the configured TTL.
// Badger's own per-entry TTL already reclaims expired keys eventually,
// but this sweeper gives deterministic eviction independent of
// Badger's GC cadence. A non-positive TTL disables it entirely.
//
// The sweeper only ever removes trace records, never spans. Span
// entries are not swept here; they carry the same Badger per-entry TTL
// as trace entries and expire on their own about ttl after each span
// was last written.
func (s *TraceStore) runSweeper() {
	defer close(s.sweepDone)

	if s.ttl <= 0 {
		<-s.stopSweep
		return
	}

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *TraceStore) sweepExpired() {
	cutoff := time.Now().Add(-s.ttl).UnixNano()

	var expired [][]byte
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(traceKeyPrefix)
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			err := item.Value(func(val []byte) error {
				var stored storedTrace
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				if stored.CreatedAt < cutoff {
					expired = append(expired, key)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if len(expired) == 0 {
		return
	}

	_ = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
