package totalsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/printdesk/backend/internal/pricing"
)

// DefaultWindow is the quiet period before pending totals are written.
const DefaultWindow = 5 * time.Second

// ErrClosed is returned by Observe and Flush after the synchronizer has been
// closed or stopped.
var ErrClosed = errors.New("totalsync: closed")

// State is the synchronizer's position in its write cycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateInFlight
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Writer persists document totals. Writes must be idempotent.
type Writer interface {
	WriteTotals(ctx context.Context, documentID string, totals pricing.Totals) error
}

// PersistenceError wraps a failed totals write.
type PersistenceError struct {
	DocumentID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist totals for document %s: %v", e.DocumentID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Result describes one completed write.
type Result struct {
	DocumentID string
	Revision   string
	Totals     pricing.Totals
	Forced     bool
	Duration   time.Duration
	Err        error
}

// Options configure a Synchronizer. Zero values select the defaults.
type Options struct {
	Window   time.Duration
	Clock    Clock
	Metrics  *Metrics
	Logger   *slog.Logger
	OnResult func(Result)
}

// Synchronizer owns the last-persisted totals of one document and writes the
// latest computed totals after a quiet window, one write at a time.
type Synchronizer struct {
	documentID string
	writer     Writer
	ctx        context.Context
	debouncer  *Debouncer
	metrics    *Metrics
	log        *slog.Logger
	onResult   func(Result)

	mu            sync.Mutex
	state         State
	snapshot      pricing.Totals
	latest        pricing.Totals
	inFlight      bool
	settled       chan struct{}
	firedInFlight bool
	err           error
	closed        bool
}

// New returns a Synchronizer whose snapshot starts at persisted. Debounced
// writes run with ctx.
func New(ctx context.Context, documentID string, persisted pricing.Totals, w Writer, opts Options) *Synchronizer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synchronizer{
		documentID: documentID,
		writer:     w,
		ctx:        ctx,
		debouncer:  NewDebouncer(opts.Window, opts.Clock),
		metrics:    opts.Metrics,
		log:        opts.Logger.With("document_id", documentID),
		onResult:   opts.OnResult,
		snapshot:   persisted,
		latest:     persisted,
	}
}

// Observe records freshly computed totals. Totals equal to the snapshot cause
// no write; anything else (re)starts the quiet window.
func (s *Synchronizer) Observe(t pricing.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.latest = t

	if s.inFlight {
		// settle() compares against the new snapshot once the write returns
		s.debouncer.Schedule(s.fire)
		s.metrics.observeCoalesced()
		return nil
	}

	if t.Equal(s.snapshot) {
		s.debouncer.Cancel()
		s.state = StateIdle
		return nil
	}

	if s.state == StatePending {
		s.metrics.observeCoalesced()
	}
	s.state = StatePending
	s.debouncer.Schedule(s.fire)
	return nil
}

// Reconcile adopts totals the store has already persisted, e.g. the totals
// echoed back after a line item was saved.
func (s *Synchronizer) Reconcile(t pricing.Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = t
	s.latest = t
	if !s.inFlight {
		s.debouncer.Cancel()
		s.state = StateIdle
		s.err = nil
	}
}

// Flush cancels the quiet window and writes the latest totals now, waiting
// for any in-flight write to settle first. It returns once the write has
// completed.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	for {
		s.debouncer.Cancel()
		s.firedInFlight = false
		if !s.inFlight {
			break
		}
		ch := s.settled
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}

	if s.latest.Equal(s.snapshot) {
		s.state = StateIdle
		s.mu.Unlock()
		return nil
	}
	totals, rev := s.begin()
	s.mu.Unlock()

	return s.write(ctx, totals, rev, true)
}

// Close flushes and stops accepting new totals. Closing twice is a no-op.
func (s *Synchronizer) Close(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}

	err := s.Flush(ctx)

	s.mu.Lock()
	s.closed = true
	s.debouncer.Cancel()
	s.mu.Unlock()
	return err
}

// Stop discards unsent totals and stops accepting new ones without writing.
// A write already in flight is left to settle but starts no follow-up.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.firedInFlight = false
	s.debouncer.Cancel()
	s.latest = s.snapshot
	if !s.inFlight {
		s.state = StateIdle
	}
}

// State returns the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return StateInFlight
	}
	return s.state
}

// Snapshot returns the last totals confirmed by the store.
func (s *Synchronizer) Snapshot() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Latest returns the most recently observed totals.
func (s *Synchronizer) Latest() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Err returns the error of the last failed write, or nil once a later write
// has succeeded.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// fire runs when the quiet window elapses.
func (s *Synchronizer) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.firedInFlight = true
		s.mu.Unlock()
		return
	}
	if s.latest.Equal(s.snapshot) {
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	totals, rev := s.begin()
	s.mu.Unlock()

	_ = s.write(s.ctx, totals, rev, false)
}

// begin marks a write as in flight. Callers hold s.mu.
func (s *Synchronizer) begin() (pricing.Totals, string) {
	s.inFlight = true
	s.state = StateInFlight
	s.settled = make(chan struct{})
	s.metrics.writeStarted()
	return s.latest, uuid.NewString()
}

// write sends totals and any follow-up writes that became due while it was
// in flight. It returns the error of the first write only.
func (s *Synchronizer) write(ctx context.Context, totals pricing.Totals, rev string, forced bool) error {
	var first error
	for i := 0; ; i++ {
		start := time.Now()
		err := s.writer.WriteTotals(ctx, s.documentID, totals)
		if err != nil {
			err = &PersistenceError{DocumentID: s.documentID, Err: err}
		}
		res := Result{
			DocumentID: s.documentID,
			Revision:   rev,
			Totals:     totals,
			Forced:     forced,
			Duration:   time.Since(start),
			Err:        err,
		}

		if i == 0 {
			first = err
		}

		s.mu.Lock()
		next, nextRev, again := s.settle(totals, err)
		s.mu.Unlock()

		s.report(res)
		if !again {
			return first
		}
		totals, rev, forced, ctx = next, nextRev, false, s.ctx
	}
}

// settle records the outcome of a write and decides whether a follow-up
// write must start right away. Callers hold s.mu.
func (s *Synchronizer) settle(sent pricing.Totals, err error) (pricing.Totals, string, bool) {
	s.inFlight = false
	close(s.settled)
	s.settled = nil
	s.metrics.writeFinished()

	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.snapshot = sent
		s.state = StateCommitted
		s.err = nil
	}

	fired := s.firedInFlight
	s.firedInFlight = false

	if s.latest.Equal(s.snapshot) {
		s.debouncer.Cancel()
		if err == nil {
			s.state = StateIdle
		}
		return pricing.Totals{}, "", false
	}
	if s.closed {
		return pricing.Totals{}, "", false
	}
	if err != nil && s.latest.Equal(sent) {
		// no newer totals than the failed ones; wait for the next recompute
		return pricing.Totals{}, "", false
	}
	if fired {
		totals, rev := s.begin()
		return totals, rev, true
	}
	if !s.debouncer.Pending() {
		s.debouncer.Schedule(s.fire)
	}
	s.state = StatePending
	return pricing.Totals{}, "", false
}

func (s *Synchronizer) report(res Result) {
	s.metrics.observeWrite(res.Forced, res.Err)
	if res.Err != nil {
		s.log.Error("totals write failed",
			"revision", res.Revision,
			"forced", res.Forced,
			"duration_ms", res.Duration.Milliseconds(),
			"error", res.Err,
		)
	} else {
		s.log.Debug("totals written",
			"revision", res.Revision,
			"forced", res.Forced,
			"duration_ms", res.Duration.Milliseconds(),
			"grand_total", res.Totals.GrandTotal,
		)
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}
