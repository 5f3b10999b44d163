package reactor

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// WatchService is a thin adapter from fsnotify's OS-level filesystem watch
// onto a per-path [Signal], reusing the chain machinery (§4.9) instead of
// reimplementing inotify/kqueue/ReadDirectoryChanges wire formats by hand.
// The library's own scope excludes building a filesystem-event front end
// from scratch, not wiring one that already exists to the chain machinery.
type WatchService struct {
	w *fsnotify.Watcher

	mu     sync.Mutex
	byPath map[string]*Signal[fsnotify.Event]
}

// NewWatchService starts an fsnotify watcher and its dispatch goroutine.
func NewWatchService() (*WatchService, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, wrapErr("reactor: start filesystem watcher", err)
	}
	s := &WatchService{w: w, byPath: make(map[string]*Signal[fsnotify.Event])}
	go s.loop()
	return s, nil
}

func (s *WatchService) loop() {
	for {
		select {
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			s.dispatch(ev)
		case _, ok := <-s.w.Errors:
			if !ok {
				return
			}
			// fsnotify.Event carries no error field, so a watcher-level
			// error has no per-path signal to ride along on and is
			// dropped here.
		}
	}
}

func (s *WatchService) dispatch(ev fsnotify.Event) {
	s.mu.Lock()
	sig, ok := s.byPath[ev.Name]
	s.mu.Unlock()
	if ok {
		sig.Emit(ev)
	}
}

// Watch begins watching path (a file or directory, per fsnotify's OS
// backend) and returns a connection to fn, invoked for every event
// fsnotify reports against that exact path.
func (s *WatchService) Watch(path string, fn func(fsnotify.Event)) (Connection, error) {
	s.mu.Lock()
	sig, ok := s.byPath[path]
	if !ok {
		sig = NewSignal[fsnotify.Event]()
		s.byPath[path] = sig
		s.mu.Unlock()
		if err := s.w.Add(path); err != nil {
			s.mu.Lock()
			delete(s.byPath, path)
			s.mu.Unlock()
			return Connection{}, wrapErr("reactor: watch path", err)
		}
	} else {
		s.mu.Unlock()
	}
	return sig.Connect(fn), nil
}

// Raw returns the underlying fsnotify watcher. Its Errors channel is also
// drained by the service's own dispatch goroutine, which discards what it
// receives, so a caller reading Errors sees only the errors that goroutine
// does not take first.
func (s *WatchService) Raw() *fsnotify.Watcher { return s.w }

// Close stops watching every path and releases the underlying OS resources.
func (s *WatchService) Close() error {
	s.mu.Lock()
	for path, sig := range s.byPath {
		_ = s.w.Remove(path)
		sig.Close()
	}
	s.byPath = nil
	s.mu.Unlock()
	return s.w.Close()
}
