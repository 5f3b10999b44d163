//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollBackend is the preferred Linux ioBackend, grounded on the teacher's
// FastPoller (eventloop/poller_linux.go) but simplified: the fd table lives
// in fdTable now, so this backend only tracks the epoll fd itself. Each
// poll call uses its own event buffer, so concurrent calls do not share one.
type epollBackend struct {
	fd int
	mu sync.Mutex // serializes EpollCtl calls; EpollWait itself is lock-free
}

func newEpollBackend() (ioBackend, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{fd: fd}, nil
}

func eventsToEpoll(mask IOEvents) uint32 {
	var e uint32
	if mask&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	return normalizeOSEvent(
		e&unix.EPOLLIN != 0,
		e&unix.EPOLLOUT != 0,
		e&unix.EPOLLERR != 0,
		e&unix.EPOLLHUP != 0,
	)
}

func (b *epollBackend) setMask(fd int, mask IOEvents) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := &unix.EpollEvent{Events: eventsToEpoll(mask), Fd: int32(fd)}
	err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_MOD, fd, ev)
	if err == unix.ENOENT {
		return unix.EpollCtl(b.fd, unix.EPOLL_CTL_ADD, fd, ev)
	}
	return err
}

func (b *epollBackend) remove(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := unix.EpollCtl(b.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (b *epollBackend) poll(timeoutMs int, deliver func(fd int, ev IOEvents)) (int, error) {
	var buf [256]unix.EpollEvent
	n, err := unix.EpollWait(b.fd, buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		deliver(int(buf[i].Fd), epollToEvents(buf[i].Events))
	}
	return n, nil
}

func (b *epollBackend) close() error {
	return unix.Close(b.fd)
}
