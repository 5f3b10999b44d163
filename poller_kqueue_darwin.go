//go:build darwin

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the preferred BSD/Darwin ioBackend. kqueue reports
// readability and writability as two independent filters rather than epoll's
// single combined event mask, so setMask must add/delete each filter
// individually depending on which bits of the requested mask are set.
type kqueueBackend struct {
	fd int
	mu sync.Mutex
}

func newKqueueBackend() (ioBackend, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueBackend{fd: fd}, nil
}

func (b *kqueueBackend) setMask(fd int, mask IOEvents) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	wantRead, wantWrite := watchMaskToOSInterest(mask)
	changes := make([]unix.Kevent_t, 0, 2)
	changes = append(changes, kevChange(fd, unix.EVFILT_READ, wantRead))
	changes = append(changes, kevChange(fd, unix.EVFILT_WRITE, wantWrite))
	_, err := unix.Kevent(b.fd, changes, nil, nil)
	return err
}

func kevChange(fd int, filter int16, want bool) unix.Kevent_t {
	flags := uint16(unix.EV_DELETE)
	if want {
		flags = unix.EV_ADD | unix.EV_ENABLE
	}
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
}

func (b *kqueueBackend) remove(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	changes := []unix.Kevent_t{
		kevChange(fd, unix.EVFILT_READ, false),
		kevChange(fd, unix.EVFILT_WRITE, false),
	}
	// ENOENT is expected whenever only one of the two filters was active;
	// kevent(2) applies each changelist entry independently, so a single
	// failing entry does not prevent the other from applying.
	_, err := unix.Kevent(b.fd, changes, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (b *kqueueBackend) poll(timeoutMs int, deliver func(fd int, ev IOEvents)) (int, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1_000_000)
		ts = &t
	}
	var buf [256]unix.Kevent_t
	n, err := unix.Kevent(b.fd, nil, buf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		ev := buf[i]
		fd := int(ev.Ident)
		switch ev.Filter {
		case unix.EVFILT_READ:
			deliver(fd, normalizeOSEvent(true, false, ev.Flags&unix.EV_ERROR != 0, ev.Flags&unix.EV_EOF != 0))
		case unix.EVFILT_WRITE:
			deliver(fd, normalizeOSEvent(false, true, ev.Flags&unix.EV_ERROR != 0, ev.Flags&unix.EV_EOF != 0))
		}
	}
	return n, nil
}

func (b *kqueueBackend) close() error {
	return unix.Close(b.fd)
}
