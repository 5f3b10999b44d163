//go:build unix

package reactor

import "github.com/joeycumines/reactor/internal/rlog"

// backendCandidate names one ioBackend constructor tried in preference
// order by NewIOReadyDispatcher.
type backendCandidate struct {
	name   string
	create func() (ioBackend, error)
}

// IOReadyDispatcher watches file descriptors for readiness and invokes a
// callback per ready fd, grounded on the reference implementation's
// ioready_dispatcher plus its epoll/kqueue/poll/select specializations.
// It composes an ioBackend (the OS-specific syscall layer) with an fdTable
// (the chain-based registration bookkeeping and fd-reuse cookie guard).
type IOReadyDispatcher struct {
	backend ioBackend
	table   *fdTable
	Backend string // name of the backend actually selected, for diagnostics
}

// NewIOReadyDispatcher probes backends in descending order of efficiency
// (epoll/kqueue, then poll, then select) and returns a dispatcher built on
// the first one that initializes successfully. It only returns an error if
// every backend on the current platform failed.
func NewIOReadyDispatcher() (*IOReadyDispatcher, error) {
	var attempted []string
	var lastErr error
	for _, cand := range platformBackends() {
		attempted = append(attempted, cand.name)
		b, err := cand.create()
		if err != nil {
			lastErr = err
			rlog.Get().Debug().Str("backend", cand.name).Err(err).Log("reactor: backend probe failed")
			continue
		}
		rlog.Get().Info().Str("backend", cand.name).Log("reactor: selected I/O readiness backend")
		return &IOReadyDispatcher{backend: b, table: newFDTable(), Backend: cand.name}, nil
	}
	return nil, &BackendUnavailableError{Attempted: attempted, Cause: lastErr}
}

// FDWatch is the handle returned by [IOReadyDispatcher.Watch]. Beyond the
// embedded Connection's Disconnect/IsConnected, it additionally allows the
// watched interest mask to be changed in place.
type FDWatch struct {
	Connection
	d  *IOReadyDispatcher
	fd int
	l  *link[ioCallback]
}

// Modify changes the set of events fn is invoked for. A zero mask does not
// disconnect the watch — fn remains registered but dormant — use Disconnect
// to remove it entirely.
func (w FDWatch) Modify(mask IOEvents) error {
	slot := w.d.table.slotFor(w.fd)
	if slot == nil {
		return ErrFDNotRegistered
	}
	before, after := w.d.table.modify(slot, w.l, mask)
	if before == after {
		return nil
	}
	if after == 0 {
		return w.d.backend.remove(w.fd)
	}
	return w.d.backend.setMask(w.fd, after)
}

// Watch registers fn to be invoked with the subset of mask that becomes
// ready each time [IOReadyDispatcher.Dispatch] observes fd as ready. Multiple
// watches may be registered against the same fd; each is tracked and
// disconnected independently.
func (d *IOReadyDispatcher) Watch(fd int, mask IOEvents, fn func(IOEvents)) (FDWatch, error) {
	if fd < 0 {
		return FDWatch{}, ErrFDOutOfRange
	}
	before, after, l := d.table.insert(fd, mask, fn)
	if before != after {
		if err := d.backend.setMask(fd, after); err != nil {
			slot := d.table.slotFor(fd)
			d.table.remove(slot, l)
			return FDWatch{}, wrapErr("reactor: register fd watch", err)
		}
	}
	w := FDWatch{d: d, fd: fd, l: l}
	w.Connection = Connection{
		disconnect: func() { w.disconnectWatch() },
		connected:  l.isConnected,
	}
	return w, nil
}

func (w FDWatch) disconnectWatch() {
	slot := w.d.table.slotFor(w.fd)
	if slot == nil {
		return
	}
	before, after := w.d.table.remove(slot, w.l)
	if before == after {
		return
	}
	if after == 0 {
		_ = w.d.backend.remove(w.fd)
	} else {
		_ = w.d.backend.setMask(w.fd, after)
	}
}

// Dispatch blocks for at most timeoutMs milliseconds (negative means
// forever, zero means a non-blocking poll) waiting for at least one watched
// fd to become ready, invoking every matching watcher's callback inline on
// the calling goroutine. It returns the number of fds the OS reported
// ready.
func (d *IOReadyDispatcher) Dispatch(timeoutMs int) (int, error) {
	cookie := d.table.snapshotCookie()
	return d.backend.poll(timeoutMs, func(fd int, ev IOEvents) {
		d.table.notify(fd, ev, cookie)
	})
}

// Close disconnects every registered watch and releases the backend's
// kernel resources (the epoll/kqueue fd, if any).
func (d *IOReadyDispatcher) Close() error {
	d.table.closeAll()
	return d.backend.close()
}
