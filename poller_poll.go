//go:build unix

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollBackend is the portable unix fallback used when neither epoll nor
// kqueue is available. Unlike those two, poll(2) requires the full
// registration set to be passed to the kernel on every call, so this
// backend keeps its own fd->mask map and rebuilds the pollfd slice lazily.
type pollBackend struct {
	mu    sync.Mutex
	masks map[int]IOEvents
	fds   []unix.PollFd
	dirty bool
}

func newPollBackend() (ioBackend, error) {
	return &pollBackend{masks: make(map[int]IOEvents)}, nil
}

func maskToPollEvents(mask IOEvents) int16 {
	var e int16
	if mask&EventRead != 0 {
		e |= unix.POLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func (b *pollBackend) setMask(fd int, mask IOEvents) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mask == 0 {
		delete(b.masks, fd)
	} else {
		b.masks[fd] = mask
	}
	b.dirty = true
	return nil
}

func (b *pollBackend) remove(fd int) error {
	return b.setMask(fd, 0)
}

func (b *pollBackend) rebuildLocked() {
	if !b.dirty {
		return
	}
	b.fds = b.fds[:0]
	for fd, mask := range b.masks {
		b.fds = append(b.fds, unix.PollFd{Fd: int32(fd), Events: maskToPollEvents(mask)})
	}
	b.dirty = false
}

func (b *pollBackend) poll(timeoutMs int, deliver func(fd int, ev IOEvents)) (int, error) {
	b.mu.Lock()
	b.rebuildLocked()
	fds := append([]unix.PollFd(nil), b.fds...)
	b.mu.Unlock()

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	delivered := 0
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		ev := normalizeOSEvent(
			pfd.Revents&unix.POLLIN != 0,
			pfd.Revents&unix.POLLOUT != 0,
			pfd.Revents&unix.POLLERR != 0,
			pfd.Revents&(unix.POLLHUP|unix.POLLNVAL) != 0,
		)
		deliver(int(pfd.Fd), ev)
		delivered++
	}
	return delivered, nil
}

func (b *pollBackend) close() error { return nil }
