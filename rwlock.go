package reactor

import (
	"sync"
	"sync/atomic"
)

// deferredRWLock is the non-blocking-write variant of the deferred
// reader/writer primitive described in the package's concurrency design: it
// admits concurrent readers, concurrent writers (serialized through a single
// mutex), and concurrent destruction of the protected container, without
// ever blocking a reader and without tearing a list a reader is traversing.
//
// Destructive work (freeing disconnected links) is never applied directly by
// read_lock/read_unlock/write_lock_async: instead, each of those methods
// reports whether the caller has become responsible for applying queued
// destructive work and then calling sync_finished. This lets chains defer
// frees until a point where no reader can possibly observe the freed memory.
//
// The zero value is not usable; construct with newDeferredRWLock.
type deferredRWLock struct {
	// readers is 1 + the number of active readers while unlocked for
	// writing, and 0 while a writer has claimed exclusivity and is
	// waiting for readers to drain (readers observe 0 and fall to the
	// slow path instead of racing the writer).
	readers atomic.Uint64
	writers sync.Mutex
	queued  bool
}

func newDeferredRWLock() *deferredRWLock {
	l := &deferredRWLock{}
	l.readers.Store(1)
	return l
}

// readLock registers the calling goroutine as a reader and returns false.
// It returns true instead if a writer has claimed exclusivity: the caller is
// then not a reader, holds the writer mutex, and must apply any queued
// destructive work, call sync_finished, and retry readLock.
func (l *deferredRWLock) readLock() bool {
	if l.readAcquire() {
		return false
	}
	return l.readLockSlow()
}

// readUnlock retires the calling goroutine as a reader. It returns true if
// the caller has become responsible for applying queued destructive work and
// must call sync_finished once done.
func (l *deferredRWLock) readUnlock() bool {
	if l.readRelease() {
		return false
	}
	return l.readUnlockSlow()
}

func (l *deferredRWLock) readAcquire() bool {
	for {
		n := l.readers.Load()
		if n == 0 {
			return false
		}
		if l.readers.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (l *deferredRWLock) readRelease() bool {
	return l.readers.Add(^uint64(0)) != 0
}

func (l *deferredRWLock) readLockSlow() bool {
	l.writers.Lock()
	if l.readAcquire() {
		l.writers.Unlock()
		return false
	}
	// The writer has claimed exclusivity (readers == 0) and is counting
	// on the next slow-path reader or the writer itself to synchronize.
	return true
}

func (l *deferredRWLock) readUnlockSlow() bool {
	l.writers.Lock()
	return true
}

// writeLockAsync acquires the writer mutex (blocking) and returns true if,
// at the moment of acquisition, there were no concurrent readers — meaning
// the caller may apply destructive work immediately and must follow up with
// sync_finished. It returns false if readers might still be in flight, in
// which case the caller must queue destructive work for later and call
// writeUnlockAsync.
func (l *deferredRWLock) writeLockAsync() bool {
	l.writers.Lock()
	if !l.queued {
		l.queued = true
		return l.readers.Add(^uint64(0)) == 0
	}
	return false
}

// writeUnlockAsync releases the writer mutex without synchronizing. Valid
// only after writeLockAsync returned false.
func (l *deferredRWLock) writeUnlockAsync() {
	l.writers.Unlock()
}

// syncFinished applies after any true return from readLock/readUnlock/
// writeLockAsync: it resets the reader count and releases the writer mutex.
func (l *deferredRWLock) syncFinished() {
	l.queued = false
	l.readers.Add(1)
	l.writers.Unlock()
}

// deferrableRWLock extends deferredRWLock with a blocking writeLockSync, used
// by callers (e.g. chain teardown) that must obtain true exclusivity rather
// than deferring.
type deferrableRWLock struct {
	readers atomic.Uint64
	writers sync.Mutex
	cond    sync.Cond
	queued  bool
	waiting bool
}

func newDeferrableRWLock() *deferrableRWLock {
	l := &deferrableRWLock{}
	l.readers.Store(1)
	l.cond.L = &l.writers
	return l
}

func (l *deferrableRWLock) readLock() bool {
	if l.readAcquire() {
		return false
	}
	return l.readLockSlow()
}

func (l *deferrableRWLock) readUnlock() bool {
	if l.readRelease() {
		return false
	}
	return l.readUnlockSlow()
}

func (l *deferrableRWLock) readAcquire() bool {
	for {
		n := l.readers.Load()
		if n == 0 {
			return false
		}
		if l.readers.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (l *deferrableRWLock) readRelease() bool {
	return l.readers.Add(^uint64(0)) != 0
}

func (l *deferrableRWLock) readLockSlow() bool {
	l.writers.Lock()
	if l.readAcquire() {
		l.writers.Unlock()
		return false
	}
	return true
}

func (l *deferrableRWLock) readUnlockSlow() bool {
	l.writers.Lock()
	return true
}

// writeLockAsync behaves as deferredRWLock.writeLockAsync, except it also
// yields to any pending writeLockSync waiter instead of racing it.
func (l *deferrableRWLock) writeLockAsync() bool {
	l.writers.Lock()
	sync := false
	if !l.queued && !l.waiting {
		sync = l.readers.Add(^uint64(0)) == 0
	}
	l.queued = true
	return sync
}

func (l *deferrableRWLock) writeUnlockAsync() {
	l.writers.Unlock()
}

// writeLockSync blocks until it can claim true exclusivity: zero readers,
// nothing queued, and no other waiter has already won the race. On return
// the caller holds the writer mutex and may apply destructive work
// immediately, then must call writeUnlockSync.
func (l *deferrableRWLock) writeLockSync() {
	l.writers.Lock()
	for {
		if !l.queued && !l.waiting {
			if l.readers.Add(^uint64(0)) == 0 {
				return
			}
		}
		l.waiting = true
		l.cond.Wait()
	}
}

// writeUnlockSync releases exclusivity obtained via writeLockSync. It is
// only ever used during final teardown of the protected container: it
// decrements readers a second time (mirroring the reference
// implementation), which wraps the count below zero. The lock's state is
// meaningless afterward, and nothing may touch the container again.
func (l *deferrableRWLock) writeUnlockSync() {
	l.queued = false
	l.waiting = false
	l.readers.Add(^uint64(0))
	l.writers.Unlock()
}

// syncFinished applies after any true return from readLock/readUnlock/
// writeLockAsync.
func (l *deferrableRWLock) syncFinished() {
	l.queued = false
	l.waiting = false
	l.readers.Add(1)
	l.cond.Broadcast()
	l.writers.Unlock()
}
