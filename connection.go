package reactor

// Connection is an owning handle to a single registration (on a [Signal],
// the I/O ready dispatcher via [FDWatch], a [ChildProcessMonitor] or a
// [WatchService]). [TimerService] returns its own [TimerConnection];
// [WorkQueue.Post] and [AsyncWorkDispatcher.Register] return no Connection,
// and their work items cannot be disconnected. Dropping a Connection value
// does NOT disconnect the underlying callback — call [Connection.Disconnect] explicitly, or
// wrap it in a [ScopedConnection] to disconnect via Close.
//
// The zero Connection is valid and its methods are no-ops, matching the
// library's idempotent-disconnect contract.
type Connection struct {
	disconnect func()
	connected  func() bool
}

// Disconnect breaks the association between the registered callback and
// its chain. Idempotent: a second call, or a call on an already-broken
// connection, is a no-op.
func (c Connection) Disconnect() {
	if c.disconnect != nil {
		c.disconnect()
	}
}

// IsConnected reports whether the callback is still registered. This is
// inherently racy against a concurrent Disconnect from another goroutine;
// it is intended for diagnostics, not for synchronization.
func (c Connection) IsConnected() bool {
	return c.connected != nil && c.connected()
}

func newConnection[T any](c *chain[T], l *link[T]) Connection {
	return Connection{
		disconnect: func() { c.disconnect(l) },
		connected:  l.isConnected,
	}
}

// ScopedConnection disconnects automatically when closed. Go has no
// destructors, so unlike the reference implementation's scoped_connection
// this relies on the caller invoking Close (typically via defer) rather
// than on scope exit — the same idiom as [context.CancelFunc] or
// [io.Closer].
type ScopedConnection struct {
	conn Connection
}

// NewScopedConnection wraps c so that [ScopedConnection.Close] disconnects
// it.
func NewScopedConnection(c Connection) *ScopedConnection {
	return &ScopedConnection{conn: c}
}

// Close disconnects the wrapped connection. It always returns nil; the
// signature matches [io.Closer] so a ScopedConnection can be used with
// defer and resource-management helpers that expect one.
func (s *ScopedConnection) Close() error {
	s.conn.Disconnect()
	return nil
}

// IsConnected reports whether the wrapped connection is still registered.
func (s *ScopedConnection) IsConnected() bool {
	return s.conn.IsConnected()
}
