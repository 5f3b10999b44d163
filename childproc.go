//go:build unix

package reactor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ChildProcessMonitor reaps terminated child processes and dispatches a
// per-pid notification, grounded on the reference implementation's
// childproc_monitor: a single SIGCHLD [Signal] feeds a reaping loop that
// calls wait4(..., WNOHANG) until no more children are immediately
// reapable, then fans each exit out to whichever per-pid chain (if any) is
// watching it.
type ChildProcessMonitor struct {
	sigs *Signal[os.Signal]
	ch   chan os.Signal

	mu       sync.Mutex
	watchers map[int]*chain[func(syscall.WaitStatus)]
}

// NewChildProcessMonitor installs a SIGCHLD handler via signal.Notify and
// begins reaping. Call Close to stop reaping and restore default SIGCHLD
// handling.
func NewChildProcessMonitor() *ChildProcessMonitor {
	m := &ChildProcessMonitor{
		sigs:     NewSignal[os.Signal](),
		ch:       make(chan os.Signal, 1),
		watchers: make(map[int]*chain[func(syscall.WaitStatus)]),
	}
	signal.Notify(m.ch, syscall.SIGCHLD)
	go m.loop()
	return m
}

func (m *ChildProcessMonitor) loop() {
	for sig := range m.ch {
		m.sigs.Emit(sig)
		m.reapAll()
	}
}

func (m *ChildProcessMonitor) reapAll() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		m.dispatch(pid, ws)
	}
}

func (m *ChildProcessMonitor) dispatch(pid int, ws syscall.WaitStatus) {
	m.mu.Lock()
	c, ok := m.watchers[pid]
	if ok {
		delete(m.watchers, pid)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	c.enterRead()
	for n := c.activeHead(); n != nil; n = n.activeNext.Load() {
		n.payload(ws)
	}
	c.exitRead()
	c.close()
}

// Watch registers fn to be invoked exactly once, the next time pid is
// reaped. Watching a pid that is never reaped (not a child of this
// process, or already reaped before Watch is called) leaks the
// registration; callers that need a timeout should race this against a
// timer themselves.
func (m *ChildProcessMonitor) Watch(pid int, fn func(syscall.WaitStatus)) Connection {
	m.mu.Lock()
	c, ok := m.watchers[pid]
	if !ok {
		c = newChain[func(syscall.WaitStatus)]()
		m.watchers[pid] = c
	}
	m.mu.Unlock()
	l := c.connect(fn)
	return newConnection(c, l)
}

// Signals exposes the raw SIGCHLD [Signal], for callers that want to
// observe every reap cycle rather than a specific pid.
func (m *ChildProcessMonitor) Signals() *Signal[os.Signal] { return m.sigs }

// Close stops reaping children and restores default SIGCHLD disposition.
func (m *ChildProcessMonitor) Close() error {
	signal.Stop(m.ch)
	close(m.ch)
	m.sigs.Close()
	return nil
}
