// Package scheduler drives the periodic fetch and reconcile cycle of one
// polling session at a time.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/securebank/txwatch/internal/domain"
)

const (
	DefaultInterval     = 10 * time.Second
	DefaultFetchTimeout = 5 * time.Second
)

// Job is the work performed on every tick. Fetch runs off the scheduler
// loop and must honour ctx. Apply runs on the loop, one call at a time, and
// never after Stop has returned. Apply must not call Start or Stop.
type Job interface {
	Fetch(ctx context.Context) ([]domain.TransactionSnapshot, error)
	Apply(snapshots []domain.TransactionSnapshot)
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFetchTimeout bounds each Fetch call.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler owns at most one recurring timer. Starting a session for a new
// user replaces the previous one; the old timer is gone before the new one
// is created.
type Scheduler struct {
	interval     time.Duration
	fetchTimeout time.Duration
	clock        Clock
	log          zerolog.Logger

	mu  sync.Mutex
	cur *run
}

type run struct {
	userID   string
	cancel   context.CancelFunc
	done     chan struct{}
	inFlight atomic.Bool
}

type fetchResult struct {
	tick      uint64
	snapshots []domain.TransactionSnapshot
	err       error
}

func New(log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		clock:        realClock{},
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start begins polling for userID: one cycle immediately, then one per
// interval. It returns false without doing anything if userID is already
// being polled. A run for another user is stopped first.
func (s *Scheduler) Start(userID string, job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		if s.cur.userID == userID {
			return false
		}
		s.stopLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		userID: userID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cur = r

	ticker := s.clock.NewTicker(s.interval)
	go s.loop(ctx, r, ticker, job)

	s.log.Info().Str("user_id", userID).Dur("interval", s.interval).Msg("polling started")
	return true
}

// Stop cancels the active run and waits for its loop to exit. A fetch still
// outstanding at that point is abandoned and its result discarded. Calling
// Stop with nothing running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cur == nil {
		return
	}
	r := s.cur
	s.cur = nil
	r.cancel()
	<-r.done
	s.log.Info().Str("user_id", r.userID).Msg("polling stopped")
}

// Active returns the user currently being polled.
func (s *Scheduler) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return "", false
	}
	return s.cur.userID, true
}

// InFlight reports whether the active run has a cycle outstanding: from the
// start of a fetch until its result has been applied or discarded.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.inFlight.Load()
}

func (s *Scheduler) loop(ctx context.Context, r *run, ticker Ticker, job Job) {
	defer close(r.done)
	defer ticker.Stop()

	log := s.log.With().Str("user_id", r.userID).Logger()
	// One slot is enough: a new fetch is only launched after the previous
	// result has been received.
	results := make(chan fetchResult, 1)
	var tick uint64

	launch := func() {
		tick++
		if r.inFlight.Load() {
			log.Debug().Uint64("tick", tick).Msg("previous fetch still in flight, skipping tick")
			return
		}
		r.inFlight.Store(true)
		go func(n uint64) {
			fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()
			snaps, err := job.Fetch(fctx)
			results <- fetchResult{tick: n, snapshots: snaps, err: err}
		}(tick)
	}

	launch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			launch()
		case res := <-results:
			if ctx.Err() != nil {
				return
			}
			if res.err != nil {
				log.Warn().Err(res.err).Uint64("tick", res.tick).Msg("fetch failed, waiting for next tick")
			} else {
				job.Apply(res.snapshots)
			}
			r.inFlight.Store(false)
		}
	}
}
