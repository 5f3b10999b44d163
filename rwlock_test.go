package reactor

import (
	"sync"
	"testing"
)

func TestDeferredRWLockFastPathNeverBlocksWriter(t *testing.T) {
	l := newDeferredRWLock()
	for i := 0; i < 1000; i++ {
		if l.readLock() {
			t.Fatalf("iteration %d: readLock reported a synchronize-needed signal with no pending write", i)
		}
		if l.readUnlock() {
			t.Fatalf("iteration %d: readUnlock reported a synchronize-needed signal with no pending write", i)
		}
	}
}

func TestDeferredRWLockNestedReadLocks(t *testing.T) {
	l := newDeferredRWLock()
	const depth = 16
	for i := 0; i < depth; i++ {
		if l.readLock() {
			t.Fatalf("depth %d: unexpected synchronize signal", i)
		}
	}
	for i := 0; i < depth; i++ {
		if l.readUnlock() {
			t.Fatalf("unlock %d: unexpected synchronize signal", i)
		}
	}
}

func TestDeferredRWLockWriteExclusionRequiresZeroReaders(t *testing.T) {
	l := newDeferredRWLock()
	l.readLock() // readers now 2
	sync := l.writeLockAsync()
	if sync {
		t.Fatalf("writeLockAsync reported exclusive access granted while a reader was still active")
	}
	l.writeUnlockAsync()
	if l.readUnlock() {
		l.syncFinished()
	}

	sync = l.writeLockAsync()
	if !sync {
		t.Fatalf("writeLockAsync did not report exclusive access with zero active readers")
	}
	l.syncFinished()
}

func TestDeferrableRWLockWriteLockSyncBlocksUntilReadersDrain(t *testing.T) {
	l := newDeferrableRWLock()
	l.readLock()

	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	go func() {
		defer wg.Done()
		close(started)
		l.writeLockSync()
		l.writeUnlockSync()
	}()

	<-started
	if l.readUnlock() {
		l.syncFinished()
	}
	wg.Wait()
}
