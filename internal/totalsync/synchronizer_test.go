package totalsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/printdesk/backend/internal/pricing"
)

// mockWriter records every write and delegates to writeFunc when set.
type mockWriter struct {
	mu        sync.Mutex
	writes    []pricing.Totals
	writeFunc func(ctx context.Context, documentID string, t pricing.Totals) error
}

func (m *mockWriter) WriteTotals(ctx context.Context, documentID string, t pricing.Totals) error {
	m.mu.Lock()
	m.writes = append(m.writes, t)
	fn := m.writeFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, documentID, t)
	}
	return nil
}

func (m *mockWriter) calls() []pricing.Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pricing.Totals(nil), m.writes...)
}

func totals(subtotal float64) pricing.Totals {
	return pricing.Totals{Subtotal: subtotal, GrandTotal: subtotal}
}

func newTestSynchronizer(persisted pricing.Totals, w Writer) (*Synchronizer, *fakeClock) {
	clock := &fakeClock{}
	s := New(context.Background(), "doc-1", persisted, w, Options{Window: time.Second, Clock: clock})
	return s, clock
}

func TestSynchronizer_UnchangedTotalsStayIdle(t *testing.T) {
	w := &mockWriter{}
	s, clock := newTestSynchronizer(totals(100), w)

	if err := s.Observe(totals(100)); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
	if clock.pending() != 0 {
		t.Errorf("pending timers = %d, want 0", clock.pending())
	}
	clock.fire()
	if len(w.calls()) != 0 {
		t.Errorf("writes = %d, want 0", len(w.calls()))
	}
}

func TestSynchronizer_RevertCancelsPendingWrite(t *testing.T) {
	w := &mockWriter{}
	s, clock := newTestSynchronizer(totals(100), w)

	s.Observe(totals(150))
	if s.State() != StatePending {
		t.Fatalf("state = %v, want pending", s.State())
	}
	s.Observe(totals(100))

	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
	clock.fire()
	if len(w.calls()) != 0 {
		t.Errorf("writes = %d, want 0", len(w.calls()))
	}
}

func TestSynchronizer_CoalescesBurstIntoOneWrite(t *testing.T) {
	w := &mockWriter{}
	s, clock := newTestSynchronizer(totals(0), w)

	for _, v := range []float64{10, 20, 30, 42.5} {
		if err := s.Observe(totals(v)); err != nil {
			t.Fatalf("Observe(%v): %v", v, err)
		}
	}
	if clock.pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", clock.pending())
	}

	clock.fire()

	got := w.calls()
	if len(got) != 1 {
		t.Fatalf("writes = %d, want 1", len(got))
	}
	if !got[0].Equal(totals(42.5)) {
		t.Errorf("written = %+v, want subtotal 42.5", got[0])
	}
	if !s.Snapshot().Equal(totals(42.5)) {
		t.Errorf("snapshot = %+v", s.Snapshot())
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestSynchronizer_FlushWritesLatestImmediately(t *testing.T) {
	w := &mockWriter{}
	s, clock := newTestSynchronizer(totals(0), w)

	s.Observe(totals(10))
	s.Observe(totals(25))

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := w.calls()
	if len(got) != 1 || !got[0].Equal(totals(25)) {
		t.Fatalf("writes = %+v, want one write of 25", got)
	}
	if clock.fire() != 0 {
		t.Error("debounce timer still active after Flush")
	}
	if len(w.calls()) != 1 {
		t.Errorf("writes after fire = %d, want 1", len(w.calls()))
	}
}

func TestSynchronizer_FlushWithoutChangesIsNoop(t *testing.T) {
	w := &mockWriter{}
	s, _ := newTestSynchronizer(totals(5), w)

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(w.calls()) != 0 {
		t.Errorf("writes = %d, want 0", len(w.calls()))
	}
}

func TestSynchronizer_FailureKeepsSnapshot(t *testing.T) {
	errDB := errors.New("connection reset")
	fail := true
	w := &mockWriter{}
	w.writeFunc = func(ctx context.Context, documentID string, t pricing.Totals) error {
		if fail {
			return errDB
		}
		return nil
	}
	s, clock := newTestSynchronizer(totals(100), w)

	s.Observe(totals(120))
	clock.fire()

	if s.State() != StateFailed {
		t.Fatalf("state = %v, want failed", s.State())
	}
	if !s.Snapshot().Equal(totals(100)) {
		t.Errorf("snapshot = %+v, want the last persisted totals", s.Snapshot())
	}
	var perr *PersistenceError
	if !errors.As(s.Err(), &perr) {
		t.Fatalf("Err() = %v, want *PersistenceError", s.Err())
	}
	if perr.DocumentID != "doc-1" || !errors.Is(s.Err(), errDB) {
		t.Errorf("Err() = %v", s.Err())
	}
	if clock.pending() != 0 {
		t.Errorf("failed write was rescheduled without a new recompute")
	}

	// the next recompute is sent normally
	fail = false
	s.Observe(totals(130))
	clock.fire()

	if s.Err() != nil {
		t.Errorf("Err() = %v after a successful write", s.Err())
	}
	if !s.Snapshot().Equal(totals(130)) {
		t.Errorf("snapshot = %+v, want 130", s.Snapshot())
	}
	if len(w.calls()) != 2 {
		t.Errorf("writes = %d, want 2", len(w.calls()))
	}
}

func TestSynchronizer_FlushReturnsPersistenceError(t *testing.T) {
	w := &mockWriter{writeFunc: func(ctx context.Context, documentID string, t pricing.Totals) error {
		return errors.New("timeout")
	}}
	s, _ := newTestSynchronizer(totals(0), w)
	s.Observe(totals(9))

	err := s.Flush(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Flush() = %v, want *PersistenceError", err)
	}
}

func TestSynchronizer_NeverOverlapsWrites(t *testing.T) {
	var active, maxActive int32
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	w := &mockWriter{}
	w.writeFunc = func(ctx context.Context, documentID string, t pricing.Totals) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		started <- struct{}{}
		<-release
		atomic.AddInt32(&active, -1)
		return nil
	}
	s, clock := newTestSynchronizer(totals(0), w)

	s.Observe(totals(1))
	done := make(chan struct{})
	go func() {
		clock.fire()
		close(done)
	}()
	<-started

	if s.State() != StateInFlight {
		t.Fatalf("state = %v, want in_flight", s.State())
	}

	// a recompute lands and its window elapses while the first write is out
	if err := s.Observe(totals(2)); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	clock.fire()

	release <- struct{}{}
	<-started
	release <- struct{}{}
	<-done

	got := w.calls()
	if len(got) != 2 {
		t.Fatalf("writes = %d, want 2", len(got))
	}
	if !got[0].Equal(totals(1)) || !got[1].Equal(totals(2)) {
		t.Errorf("writes = %+v, want 1 then 2", got)
	}
	if atomic.LoadInt32(&maxActive) != 1 {
		t.Errorf("max concurrent writes = %d, want 1", maxActive)
	}
	if !s.Snapshot().Equal(totals(2)) {
		t.Errorf("snapshot = %+v, want 2", s.Snapshot())
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestSynchronizer_FlushWaitsForInFlightWrite(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{}, 4)
	w := &mockWriter{}
	w.writeFunc = func(ctx context.Context, documentID string, t pricing.Totals) error {
		started <- struct{}{}
		<-release
		return nil
	}
	s, clock := newTestSynchronizer(totals(0), w)

	s.Observe(totals(1))
	go clock.fire()
	<-started

	s.Observe(totals(2))

	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(context.Background()) }()

	release <- struct{}{}
	<-started
	release <- struct{}{}

	if err := <-flushed; err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := w.calls()
	if len(got) != 2 || !got[1].Equal(totals(2)) {
		t.Fatalf("writes = %+v, want 1 then 2", got)
	}
	if clock.pending() != 0 {
		t.Errorf("pending timers = %d after Flush", clock.pending())
	}
}

func TestSynchronizer_FlushHonoursContext(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	w := &mockWriter{writeFunc: func(ctx context.Context, documentID string, t pricing.Totals) error {
		started <- struct{}{}
		<-release
		return nil
	}}
	s, clock := newTestSynchronizer(totals(0), w)
	s.Observe(totals(1))
	go clock.fire()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Flush() = %v, want context.Canceled", err)
	}
	close(release)
}

func TestSynchronizer_ReconcileAdoptsPersistedTotals(t *testing.T) {
	w := &mockWriter{}
	s, clock := newTestSynchronizer(totals(0), w)

	s.Observe(totals(50))
	s.Reconcile(totals(50))

	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
	clock.fire()
	if len(w.calls()) != 0 {
		t.Errorf("writes = %d, want 0", len(w.calls()))
	}
	if !s.Snapshot().Equal(totals(50)) || !s.Latest().Equal(totals(50)) {
		t.Errorf("snapshot = %+v, latest = %+v", s.Snapshot(), s.Latest())
	}
}

func TestSynchronizer_CloseFlushesAndRejects(t *testing.T) {
	w := &mockWriter{}
	s, _ := newTestSynchronizer(totals(0), w)
	s.Observe(totals(7))

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := w.calls(); len(got) != 1 || !got[0].Equal(totals(7)) {
		t.Errorf("writes = %+v, want one write of 7", got)
	}
	if err := s.Observe(totals(8)); !errors.Is(err, ErrClosed) {
		t.Errorf("Observe after Close = %v, want ErrClosed", err)
	}
}

func TestSynchronizer_StopDiscardsPending(t *testing.T) {
	w := &mockWriter{}
	s, clock := newTestSynchronizer(totals(0), w)
	s.Observe(totals(7))

	s.Stop()

	clock.fire()
	if len(w.calls()) != 0 {
		t.Errorf("writes = %d, want 0", len(w.calls()))
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
	if err := s.Observe(totals(8)); !errors.Is(err, ErrClosed) {
		t.Errorf("Observe after Stop = %v, want ErrClosed", err)
	}
	if err := s.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Stop = %v, want ErrClosed", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Errorf("Close after Stop = %v, want nil", err)
	}
	if len(w.calls()) != 0 {
		t.Errorf("writes after Close = %d, want 0", len(w.calls()))
	}
}

func TestSynchronizer_ReportsResults(t *testing.T) {
	var results []Result
	clock := &fakeClock{}
	reg := prometheus.NewRegistry()
	s := New(context.Background(), "doc-9", totals(0), &mockWriter{}, Options{
		Clock:    clock,
		Metrics:  NewMetrics(reg),
		OnResult: func(r Result) { results = append(results, r) },
	})

	s.Observe(totals(3))
	s.Observe(totals(4))
	clock.fire()
	s.Observe(totals(5))
	s.Flush(context.Background())

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Forced || !results[1].Forced {
		t.Errorf("forced = %v, %v; want false, true", results[0].Forced, results[1].Forced)
	}
	if results[0].Revision == "" || results[0].Revision == results[1].Revision {
		t.Errorf("revisions = %q, %q; want distinct non-empty", results[0].Revision, results[1].Revision)
	}
	if results[0].DocumentID != "doc-9" {
		t.Errorf("document id = %q", results[0].DocumentID)
	}
	if clock.last().delay != DefaultWindow {
		t.Errorf("window = %v, want %v", clock.last().delay, DefaultWindow)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	if got := values["printdesk_totals_sync_writes_total"]; got != 2 {
		t.Errorf("writes_total = %v, want 2", got)
	}
	if got := values["printdesk_totals_sync_coalesced_total"]; got != 1 {
		t.Errorf("coalesced_total = %v, want 1", got)
	}
	if got := values["printdesk_totals_sync_writes_in_flight"]; got != 0 {
		t.Errorf("writes_in_flight = %v, want 0", got)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "idle",
		StatePending:   "pending",
		StateInFlight:  "in_flight",
		StateCommitted: "committed",
		StateFailed:    "failed",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
