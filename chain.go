package reactor

import "sync/atomic"

// chain is the generic callback-chain container: a full list ordered by
// registration time plus a published, lock-free-traversable "active"
// sub-list. It is the common machinery behind [Signal], the fd handler
// table, and [ChildProcessMonitor]'s per-pid watchers.
// [AsyncWorkDispatcher], [WorkQueue] and [TimerService] do not use it.
//
// The zero value is not usable; construct with newChain.
type chain[T any] struct {
	lock        *deferrableRWLock
	first, last *link[T]
	active      atomic.Pointer[link[T]]
	deferred    *link[T] // deferred-destroy list; write-lock only
}

func newChain[T any]() *chain[T] {
	return &chain[T]{lock: newDeferrableRWLock()}
}

// connect appends a new link carrying payload at the end of the full list,
// splices it into the active sub-list, and returns it. Matches §4.2
// connect: walk backwards from the previous tail while predecessors have a
// nil active-next and point each at the new link.
func (c *chain[T]) connect(payload T) *link[T] {
	l := newLink(payload)
	sync := c.lock.writeLockAsync()
	c.appendLocked(l)
	c.finishWrite(sync)
	return l
}

func (c *chain[T]) appendLocked(l *link[T]) {
	l.prev = c.last
	if c.last != nil {
		c.last.next = l
	} else {
		c.first = l
	}
	c.last = l

	p := l.prev
	for p != nil && p.activeNext.Load() == nil {
		p.activeNext.Store(l)
		p = p.prev
	}
	if c.active.Load() == nil {
		c.active.Store(l)
	}
}

// disconnect removes l from the active sub-list (if still connected) and
// queues it for deferred destruction. Idempotent: a second call on an
// already-disconnected link is a no-op.
func (c *chain[T]) disconnect(l *link[T]) {
	if !l.connected.CompareAndSwap(true, false) {
		return
	}
	sync := c.lock.writeLockAsync()
	c.unlinkActiveLocked(l)
	c.pushDeferredLocked(l)
	c.finishWrite(sync)
}

// unlinkActiveLocked implements the §4.2 active-sub-list maintenance rule:
// walk backwards from l's predecessor; for each predecessor whose
// active-next is l, rewrite it to point past l; stop at the first
// predecessor whose active-next is not l (already rewritten by a prior
// removal, therefore already pointing past l).
func (c *chain[T]) unlinkActiveLocked(l *link[T]) {
	next := l.activeNext.Load()
	if c.active.Load() == l {
		c.active.Store(next)
	}
	for p := l.prev; p != nil; p = p.prev {
		if p.activeNext.Load() != l {
			break
		}
		p.activeNext.Store(next)
	}
	l.removed.Store(true)
}

func (c *chain[T]) pushDeferredLocked(l *link[T]) {
	l.deferNext = c.deferred
	c.deferred = l
}

// finishWrite applies the result of a writeLockAsync call: if sync is true
// the caller holds true exclusivity (no readers in flight), so any queued
// destructive work is applied immediately before releasing; otherwise the
// mutation already performed was "safe" under concurrent readers and the
// destructive work stays queued for a later synchronization point.
func (c *chain[T]) finishWrite(sync bool) {
	if sync {
		c.applySyncLocked()
		c.lock.syncFinished()
		return
	}
	c.lock.writeUnlockAsync()
}

// applySyncLocked detaches every deferred-destroy link from the full list
// and releases the chain's reference on each. Requires the caller to
// currently hold exclusive access (no concurrent readers).
func (c *chain[T]) applySyncLocked() {
	head := c.deferred
	c.deferred = nil
	for n := head; n != nil; {
		next := n.deferNext
		n.deferNext = nil
		c.unlinkFullLocked(n)
		var zero T
		n.payload = zero // release captured closure state promptly
		n.release()
		n = next
	}
}

func (c *chain[T]) unlinkFullLocked(l *link[T]) {
	if l.prev != nil {
		l.prev.next = l.next
	} else {
		c.first = l.next
	}
	if l.next != nil {
		l.next.prev = l.prev
	} else {
		c.last = l.prev
	}
	l.prev, l.next = nil, nil
}

// enterRead acquires the read lock, applying and retrying through any
// required synchronization first, per §4.1's read_lock contract.
func (c *chain[T]) enterRead() {
	for c.lock.readLock() {
		c.applySyncLocked()
		c.lock.syncFinished()
	}
}

func (c *chain[T]) exitRead() {
	if c.lock.readUnlock() {
		c.applySyncLocked()
		c.lock.syncFinished()
	}
}

// activeHead returns the current published active-list head. Must be
// called between enterRead/exitRead.
func (c *chain[T]) activeHead() *link[T] {
	return c.active.Load()
}

// disconnectAll disconnects every currently active link. Snapshots the
// active list under a read lock first (Go's sync.Mutex, unlike the
// reference implementation's, is not reentrant, so disconnect cannot be
// called while still holding the read lock on the same goroutine).
func (c *chain[T]) disconnectAll() {
	var links []*link[T]
	c.enterRead()
	for n := c.activeHead(); n != nil; n = n.activeNext.Load() {
		links = append(links, n)
	}
	c.exitRead()
	for _, l := range links {
		c.disconnect(l)
	}
}

// close cancels every connected link, then blocks for true exclusivity to
// drain the deferred-destroy list, per §4.2's signal destructor contract.
// It is a programmer error for registration or firing to race with close.
func (c *chain[T]) close() {
	c.disconnectAll()
	c.lock.writeLockSync()
	c.applySyncLocked()
	c.lock.writeUnlockSync()
}
