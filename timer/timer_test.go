package timer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-auth-flow/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second
const pollEvery = 2 * time.Millisecond

type scheduled struct {
	f       func()
	stopped bool
	fired   bool
}

type manualClock struct {
	mu    sync.Mutex
	items []*scheduled
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) timer.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &scheduled{f: f}
	c.items = append(c.items, s)
	return stopper{c: c, s: s}
}

type stopper struct {
	c *manualClock
	s *scheduled
}

func (s stopper) Stop() bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	wasActive := !s.s.stopped && !s.s.fired
	s.s.stopped = true
	return wasActive
}

func (c *manualClock) active() *scheduled {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.items {
		if !s.stopped && !s.fired {
			return s
		}
	}
	return nil
}

// advance waits for a scheduled tick and fires it.
func (c *manualClock) advance(t *testing.T) {
	t.Helper()
	var next *scheduled
	require.Eventually(t, func() bool {
		next = c.active()
		return next != nil
	}, waitFor, pollEvery)

	c.mu.Lock()
	next.fired = true
	c.mu.Unlock()
	next.f()
}

type recorder struct {
	mu     sync.Mutex
	events []timer.Event
}

func (r *recorder) record(e timer.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []timer.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]timer.Event(nil), r.events...)
}

func (r *recorder) count() int {
	return len(r.all())
}

func newTimer(t *testing.T, initial int) (*timer.Timer, *manualClock, *recorder) {
	t.Helper()
	clock := &manualClock{}
	rec := &recorder{}
	tm := timer.New(context.Background(),
		timer.WithInitial(initial),
		timer.WithTimeout(10*time.Millisecond),
		timer.WithAfterFunc(clock.AfterFunc),
	)
	tm.Subscribe(rec.record)
	t.Cleanup(tm.Close)
	return tm, clock, rec
}

func waitState(t *testing.T, tm *timer.Timer, state any) {
	t.Helper()
	require.Eventually(t, func() bool {
		return tm.Snapshot().State == state
	}, waitFor, pollEvery)
}

func TestTimerCountsDownAndCompletesOnce(t *testing.T) {
	tm, clock, rec := newTimer(t, 3)

	require.NoError(t, tm.Start())
	waitState(t, tm, timer.StateRunning)

	for i := 1; i <= 4; i++ {
		clock.advance(t)
		want := i
		require.Eventually(t, func() bool { return rec.count() == want }, waitFor, pollEvery)
	}

	waitState(t, tm, timer.StateComplete)
	events := rec.all()
	require.Len(t, events, 4)
	assert.Equal(t, []timer.Event{
		{Type: timer.EventTick, Remaining: 2},
		{Type: timer.EventTick, Remaining: 1},
		{Type: timer.EventTick, Remaining: 0},
		{Type: timer.EventComplete, Remaining: 0},
	}, events)
	assert.True(t, tm.Snapshot().Done())

	// nothing is scheduled after completion
	assert.Nil(t, clock.active())
	require.NoError(t, tm.Start())
	require.NoError(t, tm.Toggle())
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, timer.StateComplete, tm.Snapshot().State)
	assert.Len(t, rec.all(), 4)
}

func TestTimerZeroInitialCompletesOnFirstTimeout(t *testing.T) {
	tm, clock, rec := newTimer(t, 0)

	require.NoError(t, tm.Start())
	clock.advance(t)

	waitState(t, tm, timer.StateComplete)
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, timer.EventComplete, events[0].Type)
	assert.Equal(t, 0, tm.Snapshot().Remaining)
}

func TestTimerToggleStopsAndResumes(t *testing.T) {
	tm, clock, rec := newTimer(t, 5)

	require.NoError(t, tm.Toggle())
	waitState(t, tm, timer.StateRunning)
	clock.advance(t)
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, pollEvery)

	require.NoError(t, tm.Toggle())
	waitState(t, tm, timer.StateIdle)
	assert.Nil(t, clock.active())
	assert.Equal(t, 4, tm.Snapshot().Remaining)

	require.NoError(t, tm.Start())
	waitState(t, tm, timer.StateRunning)
	clock.advance(t)
	require.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, pollEvery)
	assert.Equal(t, 3, tm.Snapshot().Remaining)

	require.NoError(t, tm.Stop())
	waitState(t, tm, timer.StateIdle)
}

func TestTimerResetFromCompleteDoesNotStart(t *testing.T) {
	tm, clock, _ := newTimer(t, 0)

	require.NoError(t, tm.Start())
	clock.advance(t)
	waitState(t, tm, timer.StateComplete)

	require.NoError(t, tm.Reset(timer.ResetInitial(10), timer.ResetTimeout(50*time.Millisecond)))
	waitState(t, tm, timer.StateIdle)

	snap := tm.Snapshot()
	assert.Equal(t, 10, snap.Initial)
	assert.Equal(t, 10, snap.Remaining)
	assert.Equal(t, 50*time.Millisecond, snap.Timeout)
	assert.Nil(t, clock.active())
}

func TestTimerResetWhileRunningDropsStaleTick(t *testing.T) {
	tm, clock, rec := newTimer(t, 3)

	require.NoError(t, tm.Start())
	waitState(t, tm, timer.StateRunning)
	require.Eventually(t, func() bool { return clock.active() != nil }, waitFor, pollEvery)
	stale := clock.active()

	require.NoError(t, tm.Reset())
	waitState(t, tm, timer.StateIdle)

	// firing the cancelled callback must not tick an idle timer
	stale.f()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 3, tm.Snapshot().Remaining)
}

func TestTimerTickValuesStrictlyDecrease(t *testing.T) {
	tm, clock, rec := newTimer(t, 6)
	require.NoError(t, tm.Start())

	for i := 1; i <= 7; i++ {
		clock.advance(t)
		want := i
		require.Eventually(t, func() bool { return rec.count() == want }, waitFor, pollEvery)
	}
	waitState(t, tm, timer.StateComplete)

	last := 6
	completes := 0
	for _, e := range rec.all() {
		switch e.Type {
		case timer.EventTick:
			assert.Less(t, e.Remaining, last)
			assert.GreaterOrEqual(t, e.Remaining, 0)
			last = e.Remaining
		case timer.EventComplete:
			completes++
		}
	}
	assert.Equal(t, 1, completes)
}
