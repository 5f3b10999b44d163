// Package rlog is the package-level logging seam for go-reactor.
//
// It wraps github.com/joeycumines/logiface (using github.com/joeycumines/stumpy
// as the default JSON backend) so that diagnostics emitted by the reactor
// core (stale fd-cookie drops, backend selection, skipped periodic-timer
// ticks) can
// be redirected by embedders without forcing a logging framework on callers
// who never configure one. Mirrors the package-level SetStructuredLogger
// pattern used by the eventloop package this library is derived from.
package rlog

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger used internally by go-reactor.
type Logger = logiface.Logger[*stumpy.Event]

var (
	mu      sync.RWMutex
	current *Logger = newNoop()
)

func newNoop() *Logger {
	return stumpy.L.New(stumpy.L.WithLevel(logiface.LevelDisabled))
}

// SetLogger installs the package-level logger used by go-reactor's internal
// diagnostics. Passing nil restores the no-op default.
func SetLogger(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		current = newNoop()
		return
	}
	current = l
}

// Get returns the currently configured logger.
func Get() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
