//go:build unix

package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestReactorEchoWithIdleTimeout(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	p1r, p1w := mustPipe(t)
	p2r, p2w := mustPipe(t)

	var timerFired int
	var timerConn TimerConnection
	rearm := func() {
		if timerConn.IsConnected() {
			timerConn.Disconnect()
		}
		timerConn = r.Timers().At(time.Now().Add(200*time.Millisecond), func(time.Time) {
			timerFired++
		})
	}
	rearm()

	var buf [64]byte
	watch, err := r.IO().Watch(p1r, EventRead, func(IOEvents) {
		n, _ := unix.Read(p1r, buf[:])
		if n > 0 {
			unix.Write(p2w, buf[:n])
		}
		rearm()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer watch.Disconnect()

	unix.Write(p1w, []byte("ab"))
	deadlineDispatch(t, r, 100*time.Millisecond)
	unix.Write(p1w, []byte("c"))
	deadlineDispatch(t, r, 100*time.Millisecond)

	// Let the idle timer actually fire.
	deadlineDispatch(t, r, 400*time.Millisecond)

	out := make([]byte, 16)
	n, _ := unix.Read(p2r, out)
	got := string(out[:n])
	if got != "abc" {
		t.Fatalf("p2 received %q, want %q", got, "abc")
	}
	if timerFired != 1 {
		t.Fatalf("timer fired %d times, want exactly 1 (after the last read)", timerFired)
	}
}

func deadlineDispatch(t *testing.T, r *Reactor, total time.Duration) {
	t.Helper()
	deadline := time.Now().Add(total)
	for time.Now().Before(deadline) {
		if _, err := r.Dispatch(20 * time.Millisecond); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
}

func TestReactorDispatchPendingReportsActivity(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	ran, err := r.DispatchPending()
	if err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}
	if ran {
		t.Fatalf("DispatchPending reported activity with nothing queued")
	}

	r.Work().Post(func() {})
	ran, err = r.DispatchPending()
	if err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}
	if !ran {
		t.Fatalf("DispatchPending reported no activity with a posted job")
	}
}
