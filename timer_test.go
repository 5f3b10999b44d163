package reactor

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func TestTimerMonotoneFiring(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	ts := NewTimerService(clock)

	var trace []string
	ts.At(clock.Now().Add(time.Second), func(time.Time) { trace = append(trace, "t1") })
	ts.At(clock.Now().Add(2*time.Second), func(time.Time) { trace = append(trace, "t2") })

	now := clock.advance(3 * time.Second)
	ts.runDue(now)

	if len(trace) != 2 || trace[0] != "t1" || trace[1] != "t2" {
		t.Fatalf("trace = %v, want [t1 t2]", trace)
	}
}

func TestTimerPeriodicFiresOncePerDispatchWithoutDrift(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	ts := NewTimerService(clock)

	var fired int
	conn := ts.Every(time.Second, func(time.Time) { fired++ })
	defer conn.Disconnect()

	for i := 0; i < 3; i++ {
		now := clock.advance(time.Second)
		ts.runDue(now)
	}

	if fired != 3 {
		t.Fatalf("fired = %d, want 3 after 3 dispatch steps spaced one period apart", fired)
	}

	next, ok := ts.nextDeadline()
	if !ok {
		t.Fatalf("expected a pending next deadline after a periodic firing")
	}
	wantNext := time.Unix(0, 0).Add(4 * time.Second)
	if !next.Equal(wantNext) {
		t.Fatalf("next deadline = %v, want %v (no drift across three on-time firings)", next, wantNext)
	}
}

func TestTimerPeriodicSkipsMissedTicksAfterALongGap(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	ts := NewTimerService(clock)

	var fired int
	conn := ts.Every(time.Second, func(time.Time) { fired++ })
	defer conn.Disconnect()

	now := clock.advance(3500 * time.Millisecond)
	ts.runDue(now)

	if fired != 1 {
		t.Fatalf("fired = %d, want exactly 1: a dispatch gap spanning several periods catches up, it does not queue a backlog", fired)
	}
	next, ok := ts.nextDeadline()
	if !ok {
		t.Fatalf("expected a pending next deadline")
	}
	wantNext := time.Unix(0, 0).Add(4 * time.Second)
	if !next.Equal(wantNext) {
		t.Fatalf("next deadline = %v, want %v (missed 2s and 3s ticks skipped)", next, wantNext)
	}
}

func TestTimerSuspendResume(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	ts := NewTimerService(clock)

	var fired bool
	conn := ts.At(clock.Now().Add(time.Second), func(time.Time) { fired = true })
	conn.Suspend()

	now := clock.advance(5 * time.Second)
	ts.runDue(now)
	if fired {
		t.Fatalf("suspended timer fired")
	}

	conn.Resume(clock.Now().Add(time.Second))
	now = clock.advance(2 * time.Second)
	ts.runDue(now)
	if !fired {
		t.Fatalf("resumed timer did not fire")
	}
}

func TestTimerCancelIsIdempotent(t *testing.T) {
	ts := NewTimerService(newFakeClock(time.Unix(0, 0)))
	var fired bool
	conn := ts.At(time.Unix(0, 0), func(time.Time) { fired = true })
	conn.Disconnect()
	conn.Disconnect()

	ts.runDue(time.Unix(10, 0))
	if fired {
		t.Fatalf("cancelled timer fired")
	}
}
