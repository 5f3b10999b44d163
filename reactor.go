//go:build unix

package reactor

import "time"

// Reactor composes an [IOReadyDispatcher], a [TimerService], a [WorkQueue]
// and an [AsyncWorkDispatcher] into a single blended dispatch loop,
// grounded on the reference implementation's top-level reactor: the
// reactor's wakeup [EventFlag] is watched by the I/O dispatcher, so posting
// work, triggering async work or calling WakeUp from another goroutine
// interrupts a blocked Dispatch call. Registering or re-arming a timer does
// not: a timer armed while Dispatch is blocked is taken into account only
// once the current I/O wait returns.
type Reactor struct {
	io      *IOReadyDispatcher
	timers  *TimerService
	work    *WorkQueue
	async   *AsyncWorkDispatcher
	wakeup  *EventFlag
	wakeupW *FDWatch
}

// New constructs a reactor using the best available I/O readiness backend
// for the current platform and a real wall clock for timers. opts may
// override the clock (mainly for tests).
func New(opts ...Option) (*Reactor, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	io, err := NewIOReadyDispatcher()
	if err != nil {
		return nil, err
	}
	flag, err := NewEventFlag()
	if err != nil {
		_ = io.Close()
		return nil, err
	}

	r := &Reactor{
		io:     io,
		timers: NewTimerService(cfg.clock),
		work:   NewWorkQueue(flag),
		async:  NewAsyncWorkDispatcher(flag),
		wakeup: flag,
	}

	w, err := io.Watch(flag.ReadFD(), EventRead, func(IOEvents) { flag.Clear() })
	if err != nil {
		_ = flag.Close()
		_ = io.Close()
		return nil, err
	}
	r.wakeupW = &w
	return r, nil
}

// IO returns the underlying I/O readiness dispatcher, for direct fd
// registration.
func (r *Reactor) IO() *IOReadyDispatcher { return r.io }

// Timers returns the underlying timer service.
func (r *Reactor) Timers() *TimerService { return r.timers }

// Work returns the underlying ad-hoc work queue.
func (r *Reactor) Work() *WorkQueue { return r.work }

// Async returns the underlying async-signal-safe work dispatcher.
func (r *Reactor) Async() *AsyncWorkDispatcher { return r.async }

// WakeUp interrupts a blocked Dispatch call from any thread, async-signal-safe.
func (r *Reactor) WakeUp() { r.wakeup.Set() }

// Dispatch runs one blended dispatch step: drain the async-safe work
// dispatcher, run at most one ad-hoc work-queue item, run every timer whose
// deadline has passed, then block in the I/O dispatcher for at most the
// time remaining until the next timer (or the given timeout, whichever is
// sooner). A negative timeout blocks until woken.
func (r *Reactor) Dispatch(timeout time.Duration) (int, error) {
	r.async.runPending()
	r.work.runOne()

	now := r.timers.Clock().Now()
	r.timers.runDue(now)

	waitMs := durationToMs(timeout)
	if next, ok := r.timers.nextDeadline(); ok {
		untilTimer := next.Sub(now)
		if untilTimer < 0 {
			untilTimer = 0
		}
		if ms := durationToMs(untilTimer); waitMs < 0 || ms < waitMs {
			waitMs = ms
		}
	}

	// Register as a waiter so that a Set from here on writes the wakeup byte
	// and ends the I/O wait; a Set that already happened, or ad-hoc work
	// still queued, makes this step's wait non-blocking instead.
	r.wakeup.waiting.Add(1)
	defer r.wakeup.waiting.Add(-1)
	if r.wakeup.Flagged() || r.work.pending() {
		r.wakeup.Clear()
		waitMs = 0
	}

	return r.io.Dispatch(waitMs)
}

// DispatchPending runs one dispatch step with a zero timeout (never blocks)
// and reports whether anything fired: an async-work item, a work-queue
// item, a due timer, or at least one ready fd.
func (r *Reactor) DispatchPending() (bool, error) {
	ranAsync := r.async.runPending()
	ranWork := r.work.runOne()

	now := r.timers.Clock().Now()
	ranTimers := r.timers.runDue(now)

	n, err := r.io.Dispatch(0)
	if err != nil {
		return false, err
	}
	return ranAsync || ranWork || ranTimers || n > 0, nil
}

func durationToMs(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > int64(int(^uint(0)>>1)) {
		return int(^uint(0) >> 1)
	}
	return int(ms)
}

// Close disconnects the wakeup watch and closes the underlying I/O
// dispatcher and event flag. Registered timers and work items are dropped;
// it is the caller's responsibility to have already disconnected anything
// it cares about un-leaking explicitly (fd watches close their fds
// independently of this call).
func (r *Reactor) Close() error {
	if r.wakeupW != nil {
		r.wakeupW.Disconnect()
	}
	err := r.io.Close()
	if cerr := r.wakeup.Close(); err == nil {
		err = cerr
	}
	return err
}
