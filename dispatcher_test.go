//go:build unix

package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func mustPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestIOReadyDispatcherReadWatchFires(t *testing.T) {
	d, err := NewIOReadyDispatcher()
	if err != nil {
		t.Fatalf("NewIOReadyDispatcher: %v", err)
	}
	defer d.Close()

	r, w := mustPipe(t)

	var got IOEvents
	watch, err := d.Watch(r, EventRead, func(ev IOEvents) { got = ev })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer watch.Disconnect()

	unix.Write(w, []byte("x"))

	deadline := time.Now().Add(time.Second)
	for got == 0 && time.Now().Before(deadline) {
		if _, err := d.Dispatch(50); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if got&EventRead == 0 {
		t.Fatalf("got events = %v, want EventRead set", got)
	}
}

// TestFDCookieGuard mirrors the S3 scenario: a stale readiness notification
// captured against a closed fd must not reach a new registration that
// happens to reuse the same integer.
func TestFDCookieGuard(t *testing.T) {
	table := newFDTable()

	var oldFired, newFired bool
	_, _, oldLink := table.insert(5, EventRead, func(IOEvents) { oldFired = true })

	cookieBeforeClose := table.snapshotCookie()

	slot := table.slotFor(5)
	table.remove(slot, oldLink) // fd 5 "closed": slot empties, cookie bumps

	_, _, newLink := table.insert(5, EventRead, func(IOEvents) { newFired = true })
	_ = newLink

	// Deliver the stale event using the cookie captured before the close.
	table.notify(5, EventRead, cookieBeforeClose)

	if oldFired {
		t.Fatalf("stale event delivered to the disconnected old registration")
	}
	if newFired {
		t.Fatalf("stale event delivered to the new registration on the reused fd")
	}

	// A fresh notification using the current cookie must still reach the
	// new registration.
	table.notify(5, EventRead, table.snapshotCookie())
	if !newFired {
		t.Fatalf("current event did not reach the new registration")
	}
}
