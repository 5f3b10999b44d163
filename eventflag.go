//go:build unix

package reactor

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// EventFlag is the async-signal-safe wait/notify primitive (§6 "event
// trigger"). Its Set method may be called from within a POSIX signal
// handler — it performs at most one non-blocking write(2) of one byte and
// no allocation. Wait polls the flag's pollable file descriptor, so the
// flag can also be folded directly into an [IOReadyDispatcher]'s watch set
// to wake a blocked Dispatch call.
//
// The wire state is a tri-state atomic int32, grounded on the reference
// implementation's pipe_eventflag:
//
//	0 — cleared
//	1 — set, no byte written to the pipe yet
//	2 — set, one byte is sitting in the pipe
//
// Set: CAS 0->1 (release); if there were waiters, CAS 1->2 and write one
// byte. Clear: CAS non-zero->0 (acquire); if the prior state was 2, read
// one byte back out. Wait fast-paths on state != 0; otherwise it registers
// as a waiter and polls the read end.
type EventFlag struct {
	state   atomic.Int32
	waiting atomic.Int64
	readFD  int
	writeFD int
}

const (
	flagClear   int32 = 0
	flagSet     int32 = 1
	flagPending int32 = 2 // set AND a wakeup byte is in the pipe
)

// NewEventFlag creates a pipe-backed event flag. The returned flag owns
// both pipe file descriptors and must be closed with [EventFlag.Close].
func NewEventFlag() (*EventFlag, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, wrapErr("reactor: create event flag pipe", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, wrapErr("reactor: set event flag pipe non-blocking", err)
		}
		unix.CloseOnExec(fd)
	}
	return &EventFlag{readFD: fds[0], writeFD: fds[1]}, nil
}

// Close releases both pipe file descriptors.
func (f *EventFlag) Close() error {
	err1 := unix.Close(f.readFD)
	err2 := unix.Close(f.writeFD)
	if err1 != nil {
		return err1
	}
	return err2
}

// ReadFD returns the read end of the flag's pipe, suitable for registering
// with an [IOReadyDispatcher].
func (f *EventFlag) ReadFD() int { return f.readFD }

// Set marks the flag as signalled, async-signal-safe. It is cheap (a
// single atomic load) in the common case where the flag is already set.
func (f *EventFlag) Set() {
	if f.state.Load() != flagClear {
		return
	}
	if !f.state.CompareAndSwap(flagClear, flagSet) {
		return
	}
	if f.waiting.Load() == 0 {
		return
	}
	f.setSlow()
}

func (f *EventFlag) setSlow() {
	if f.state.CompareAndSwap(flagSet, flagPending) {
		var b [1]byte
		b[0] = 1
		for {
			_, err := unix.Write(f.writeFD, b[:])
			if err != unix.EINTR {
				break
			}
		}
	}
}

// Clear resets the flag to unsignalled, draining the wakeup byte from the
// pipe if one was posted.
func (f *EventFlag) Clear() {
	old := f.state.Swap(flagClear)
	if old != flagPending {
		return
	}
	var b [1]byte
	for {
		_, err := unix.Read(f.readFD, b[:])
		if err != unix.EINTR {
			break
		}
	}
}

// Flagged reports whether the flag is currently set, without side effects.
func (f *EventFlag) Flagged() bool {
	return f.state.Load() != flagClear
}

// Wait blocks the calling goroutine until the flag is set. It is not
// async-signal-safe (unlike Set) because it may poll(2).
func (f *EventFlag) Wait() {
	if f.state.Load() != flagClear {
		return
	}
	f.waiting.Add(1)
	defer f.waiting.Add(-1)
	fds := []unix.PollFd{{Fd: int32(f.readFD), Events: unix.POLLIN}}
	for f.state.Load() == flagClear {
		_, _ = unix.Poll(fds, -1)
	}
}
