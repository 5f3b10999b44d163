package reactor

import (
	"sync"
	"time"

	"github.com/joeycumines/reactor/internal/rlog"
)

// Clock abstracts wall-clock time so timer behavior can be tested without
// real sleeps, grounded on the teacher's fake-clock test fixtures used
// across the eventloop package's timer tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// timerEntry is the bookkeeping behind one registered timer. node is nil
// exactly when the timer is suspended (not currently resident in the
// heap).
type timerEntry struct {
	fn        func(time.Time)
	interval  time.Duration // zero for a one-shot timer
	deadline  time.Time
	node      *fibNode
	connected bool
}

// TimerService dispatches one-shot and periodic callbacks ordered by
// deadline, grounded on the reference implementation's timer_dispatcher:
// a Fibonacci heap (fibheap.go) keyed by deadline gives O(1) amortized
// insert/reschedule, which matters for a periodic timer since every firing
// reschedules it.
type TimerService struct {
	clock Clock
	mu    sync.Mutex
	heap  *fibHeap
}

// NewTimerService constructs a timer service. A nil clock uses time.Now.
func NewTimerService(clock Clock) *TimerService {
	if clock == nil {
		clock = systemClock{}
	}
	return &TimerService{clock: clock, heap: newFibHeap()}
}

// Clock returns the clock this service schedules against, so a caller
// composing it into a larger dispatch loop (see [Reactor]) can use the same
// notion of "now" deciding which timers are due.
func (t *TimerService) Clock() Clock { return t.clock }

// TimerConnection is the handle returned by registration calls. Beyond the
// usual Disconnect/IsConnected it additionally supports Suspend/Resume, the
// Go equivalent of the reference implementation's suspended timer variant:
// a suspended timer keeps its registration (and its interval, for a
// periodic timer) without occupying a slot in the heap.
type TimerConnection struct {
	ts *TimerService
	e  *timerEntry
}

// Disconnect cancels the timer. The zero TimerConnection's Disconnect is a
// no-op, matching the Connection/ScopedConnection idiom used elsewhere in
// this package.
func (c TimerConnection) Disconnect() {
	if c.ts != nil {
		c.ts.cancel(c.e)
	}
}

// IsConnected reports whether the timer is still registered (suspended or
// not). The zero TimerConnection reports false.
func (c TimerConnection) IsConnected() bool {
	if c.ts == nil {
		return false
	}
	c.ts.mu.Lock()
	defer c.ts.mu.Unlock()
	return c.e.connected
}

// Suspend removes the timer from consideration without forgetting it. It is
// a no-op if already suspended, already disconnected, or the zero value.
func (c TimerConnection) Suspend() {
	if c.ts != nil {
		c.ts.suspend(c.e)
	}
}

// Resume reinstates a suspended timer with a new deadline. It is a no-op if
// the timer was never suspended, has been disconnected, or this is the zero
// value.
func (c TimerConnection) Resume(at time.Time) {
	if c.ts != nil {
		c.ts.resume(c.e, at)
	}
}

// At registers a one-shot timer firing at (or soon after) at.
func (t *TimerService) At(at time.Time, fn func(time.Time)) TimerConnection {
	return t.register(at, 0, fn)
}

// Every registers a periodic timer, first firing after interval and then
// rescheduling itself every interval thereafter. Rescheduling is computed
// from the previous deadline, not from the firing time, so the period does
// not drift under light dispatch jitter — but a dispatch gap longer than
// several periods skips the missed ticks rather than firing a backlog of
// them.
func (t *TimerService) Every(interval time.Duration, fn func(time.Time)) TimerConnection {
	return t.register(t.clock.Now().Add(interval), interval, fn)
}

func (t *TimerService) register(at time.Time, interval time.Duration, fn func(time.Time)) TimerConnection {
	e := &timerEntry{fn: fn, interval: interval, deadline: at, connected: true}
	t.mu.Lock()
	e.node = t.heap.insert(at, e)
	t.mu.Unlock()
	return TimerConnection{ts: t, e: e}
}

func (t *TimerService) cancel(e *timerEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !e.connected {
		return
	}
	e.connected = false
	if e.node != nil {
		t.heap.remove(e.node)
		e.node = nil
	}
}

func (t *TimerService) suspend(e *timerEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !e.connected || e.node == nil {
		return
	}
	t.heap.remove(e.node)
	e.node = nil
}

func (t *TimerService) resume(e *timerEntry, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !e.connected || e.node != nil {
		return
	}
	e.deadline = at
	e.node = t.heap.insert(at, e)
}

// nextDeadline reports the deadline of the earliest pending timer, if any.
func (t *TimerService) nextDeadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.heap.peek()
	if n == nil {
		return time.Time{}, false
	}
	return n.key, true
}

// runDue pops and invokes every timer whose deadline is at or before now,
// rescheduling periodic ones, and reports whether any ran.
func (t *TimerService) runDue(now time.Time) bool {
	var due []*timerEntry
	t.mu.Lock()
	for {
		n := t.heap.peek()
		if n == nil || n.key.After(now) {
			break
		}
		t.heap.extractMin()
		e := n.value.(*timerEntry)
		e.node = nil
		if e.interval == 0 {
			e.connected = false
		}
		due = append(due, e)
	}
	t.mu.Unlock()
	if len(due) == 0 {
		return false
	}
	for _, e := range due {
		e.fn(now)
		t.mu.Lock()
		if e.connected && e.interval > 0 {
			next := e.deadline.Add(e.interval)
			skipped := 0
			for !next.After(now) {
				next = next.Add(e.interval)
				skipped++
			}
			if skipped > 0 {
				rlog.Get().Debug().Int("skipped", skipped).Log("reactor: periodic timer skipped missed ticks after a dispatch gap")
			}
			e.deadline = next
			e.node = t.heap.insert(next, e)
		}
		t.mu.Unlock()
	}
	return true
}
