package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/txwatch/internal/domain"
)

const wait = time.Second

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time), d: d}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeTicker struct {
	c       chan time.Time
	d       time.Duration
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() { t.stopped.Store(true) }

func (t *fakeTicker) fire(tb testing.TB) {
	tb.Helper()
	select {
	case t.c <- time.Now():
	case <-time.After(wait):
		tb.Fatal("tick was not consumed")
	}
}

type response struct {
	snaps []domain.TransactionSnapshot
	err   error
}

// fakeJob hands out scripted fetch results. Fetch blocks until the test
// supplies a response, which lets tests hold a fetch in flight.
type fakeJob struct {
	started   chan struct{}
	responses chan response
	applied   chan []domain.TransactionSnapshot
	ignoreCtx bool
}

func newFakeJob() *fakeJob {
	return &fakeJob{
		started:   make(chan struct{}, 16),
		responses: make(chan response, 16),
		applied:   make(chan []domain.TransactionSnapshot, 16),
	}
}

func (j *fakeJob) Fetch(ctx context.Context) ([]domain.TransactionSnapshot, error) {
	j.started <- struct{}{}
	if j.ignoreCtx {
		r := <-j.responses
		return r.snaps, r.err
	}
	select {
	case r := <-j.responses:
		return r.snaps, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *fakeJob) Apply(snaps []domain.TransactionSnapshot) {
	j.applied <- snaps
}

func (j *fakeJob) respond(id string) {
	j.responses <- response{snaps: []domain.TransactionSnapshot{{ID: id, Status: domain.StatusPending}}}
}

func (j *fakeJob) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-j.started:
	case <-time.After(wait):
		t.Fatal("fetch was not started")
	}
}

func (j *fakeJob) waitApplied(t *testing.T) []domain.TransactionSnapshot {
	t.Helper()
	select {
	case s := <-j.applied:
		return s
	case <-time.After(wait):
		t.Fatal("nothing applied")
		return nil
	}
}

func newTestScheduler(clock Clock) *Scheduler {
	return New(zerolog.Nop(), WithClock(clock), WithInterval(time.Minute))
}

func TestScheduler_Defaults(t *testing.T) {
	s := New(zerolog.Nop(), WithInterval(0), WithFetchTimeout(-time.Second))
	assert.Equal(t, DefaultInterval, s.Interval())
	assert.Equal(t, DefaultFetchTimeout, s.fetchTimeout)
}

func TestScheduler_ImmediateFirstCycleThenTicks(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	job := newFakeJob()

	require.True(t, s.Start("user_1", job))
	defer s.Stop()

	assert.Equal(t, time.Minute, clock.ticker(0).d)

	job.waitStarted(t)
	job.respond("tx1")
	assert.Equal(t, "tx1", job.waitApplied(t)[0].ID)

	clock.ticker(0).fire(t)
	job.waitStarted(t)
	job.respond("tx2")
	assert.Equal(t, "tx2", job.waitApplied(t)[0].ID)
}

func TestScheduler_SkipsTickWhileInFlight(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	job := newFakeJob()

	s.Start("user_1", job)
	defer s.Stop()

	job.waitStarted(t)
	assert.True(t, s.InFlight())

	clock.ticker(0).fire(t)
	clock.ticker(0).fire(t)

	select {
	case <-job.started:
		t.Fatal("second fetch started while the first was outstanding")
	case <-time.After(50 * time.Millisecond):
	}

	job.respond("tx1")
	job.waitApplied(t)
	require.Eventually(t, func() bool { return !s.InFlight() }, wait, time.Millisecond)

	clock.ticker(0).fire(t)
	job.waitStarted(t)
}

func TestScheduler_FetchErrorKeepsPolling(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	job := newFakeJob()

	s.Start("user_1", job)
	defer s.Stop()

	job.waitStarted(t)
	job.responses <- response{err: errors.New("connection refused")}
	require.Eventually(t, func() bool { return !s.InFlight() }, wait, time.Millisecond)

	clock.ticker(0).fire(t)
	job.waitStarted(t)
	job.respond("tx1")

	assert.Equal(t, "tx1", job.waitApplied(t)[0].ID)
	assert.Empty(t, job.applied)

	_, active := s.Active()
	assert.True(t, active)
}

func TestScheduler_StopDiscardsInFlightResult(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	job := newFakeJob()
	job.ignoreCtx = true

	s.Start("user_1", job)
	job.waitStarted(t)

	s.Stop()
	assert.True(t, clock.ticker(0).stopped.Load())

	// The fetch resolves after Stop has returned.
	job.respond("late")

	select {
	case <-job.applied:
		t.Fatal("result applied after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	_, active := s.Active()
	assert.False(t, active)
	assert.False(t, s.InFlight())
}

func TestScheduler_StopCancelsFetchContext(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	job := newFakeJob()

	s.Start("user_1", job)
	job.waitStarted(t)
	s.Stop()

	assert.Empty(t, job.applied)
}

func TestScheduler_StartSameUserIsNoop(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	job := newFakeJob()

	require.True(t, s.Start("user_1", job))
	defer s.Stop()

	assert.False(t, s.Start("user_1", job))
	assert.Equal(t, 1, clock.count())
}

func TestScheduler_StartOtherUserReplacesRun(t *testing.T) {
	clock := &fakeClock{}
	s := newTestScheduler(clock)
	first := newFakeJob()
	second := newFakeJob()

	s.Start("user_1", first)
	first.waitStarted(t)

	require.True(t, s.Start("user_2", second))
	defer s.Stop()

	assert.Equal(t, 2, clock.count())
	assert.True(t, clock.ticker(0).stopped.Load())
	assert.False(t, clock.ticker(1).stopped.Load())

	user, active := s.Active()
	assert.True(t, active)
	assert.Equal(t, "user_2", user)

	second.waitStarted(t)
	second.respond("tx_b")
	second.waitApplied(t)
	assert.Empty(t, first.applied)
}

func TestScheduler_StopWhenIdle(t *testing.T) {
	s := newTestScheduler(&fakeClock{})
	s.Stop()
	s.Stop()

	_, active := s.Active()
	assert.False(t, active)
}

func TestScheduler_FetchTimeout(t *testing.T) {
	clock := &fakeClock{}
	s := New(zerolog.Nop(), WithClock(clock), WithFetchTimeout(10*time.Millisecond))
	job := newFakeJob()

	s.Start("user_1", job)
	defer s.Stop()

	job.waitStarted(t)
	require.Eventually(t, func() bool { return !s.InFlight() }, wait, time.Millisecond)

	clock.ticker(0).fire(t)
	job.waitStarted(t)
}

func TestScheduler_RealClock(t *testing.T) {
	s := New(zerolog.Nop(), WithInterval(5*time.Millisecond))
	job := newFakeJob()
	for i := 0; i < 4; i++ {
		job.respond("tx")
	}

	s.Start("user_1", job)
	job.waitApplied(t)
	job.waitApplied(t)
	s.Stop()
}
