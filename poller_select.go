//go:build unix

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// selectBackend is the last-resort I/O readiness backend, used only when
// epoll, kqueue and poll(2) are all unavailable. It inherits select(2)'s
// historical FD_SETSIZE ceiling (1024 on every platform golang.org/x/sys
// supports), checked explicitly in setMask since the kernel enforces it
// silently by truncating the fd_set otherwise.
type selectBackend struct {
	mu    sync.Mutex
	masks map[int]IOEvents
}

const selectFDSetSize = unix.FD_SETSIZE

func newSelectBackend() (ioBackend, error) {
	return &selectBackend{masks: make(map[int]IOEvents)}, nil
}

func (b *selectBackend) setMask(fd int, mask IOEvents) error {
	if fd >= selectFDSetSize {
		return ErrFDOutOfRange
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if mask == 0 {
		delete(b.masks, fd)
	} else {
		b.masks[fd] = mask
	}
	return nil
}

func (b *selectBackend) remove(fd int) error {
	return b.setMask(fd, 0)
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

func (b *selectBackend) poll(timeoutMs int, deliver func(fd int, ev IOEvents)) (int, error) {
	b.mu.Lock()
	var rfds, wfds, efds unix.FdSet
	nfds := 0
	for fd, mask := range b.masks {
		if mask&EventRead != 0 {
			fdSet(&rfds, fd)
		}
		if mask&EventWrite != 0 {
			fdSet(&wfds, fd)
		}
		fdSet(&efds, fd)
		if fd+1 > nfds {
			nfds = fd + 1
		}
	}
	masks := make(map[int]IOEvents, len(b.masks))
	for fd, mask := range b.masks {
		masks[fd] = mask
	}
	b.mu.Unlock()

	var tv *unix.Timeval
	if timeoutMs >= 0 {
		t := unix.NsecToTimeval(int64(timeoutMs) * 1_000_000)
		tv = &t
	}

	n, err := unix.Select(nfds, &rfds, &wfds, &efds, tv)
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
	for fd := range masks {
		r := fdIsSet(&rfds, fd)
		w := fdIsSet(&wfds, fd)
		e := fdIsSet(&efds, fd)
		if !r && !w && !e {
			continue
		}
		deliver(fd, normalizeOSEvent(r, w, e, false))
		delivered++
	}
	return delivered, nil
}

func (b *selectBackend) close() error { return nil }
