// Package reactor implements a thread-safe callback and event-dispatching
// core for POSIX systems: signal chains, file-descriptor readiness,
// timers, and deferred procedure execution, composed by a [Reactor] into a
// single dispatch loop suitable for driving a server or daemon.
//
// # Architecture
//
// The concurrency core is a deferred reader/writer lock ([deferredRWLock],
// [deferrableRWLock]) that admits concurrent readers, concurrent writers,
// and concurrent destruction of the protected container without blocking
// readers and without tearing a list a reader is traversing. [Signal], the
// internal fd handler table and [ChildProcessMonitor]'s per-pid watchers are
// built on the same generic link/chain machinery layered over that lock.
// [AsyncWorkDispatcher] (a lock-free stack), [WorkQueue] (a mutex-protected
// slice) and [TimerService] (a mutex-protected Fibonacci heap) do not use
// it.
//
// # Platform support
//
// I/O readiness is multiplexed behind [IOReadyDispatcher] using the
// platform's native mechanism:
//   - Linux: epoll
//   - Darwin: kqueue
//   - other unix: poll, falling back to select
//
// # Thread safety
//
// Any number of goroutines may call registration, modification,
// disconnection and notification concurrently. Zero or more goroutines may
// call Dispatch on a given dispatcher concurrently. A disconnect that
// happens-before a subsequent firing is guaranteed not to observe the
// disconnected callback; a disconnect racing a concurrent firing may still
// see the callback invoked once more (causal consistency, not
// linearisability).
//
// # Usage
//
//	r, err := reactor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	watch, err := r.IO().Watch(fd, reactor.EventRead, func(ev reactor.IOEvents) {
//	    fmt.Println("fd ready:", ev)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer watch.Disconnect()
//
//	if _, err := r.Dispatch(time.Second); err != nil {
//	    log.Fatal(err)
//	}
package reactor
