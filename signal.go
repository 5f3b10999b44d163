package reactor

// Signal is an ordered list of callbacks, each accepting a single argument
// of type T, invoked in registration order on [Signal.Emit]. Multiple
// logical arguments can be passed by instantiating Signal with a struct
// type — Go's lack of variadic-arity generics makes a single type
// parameter the idiomatic substitute for the reference library's
// signal<Sig> template, which could close over an arbitrary function
// signature.
//
// A Signal must be created with [NewSignal] and must eventually be closed
// with [Signal.Close]. It is a programmer error for Connect or Emit to
// race with Close.
type Signal[T any] struct {
	c *chain[func(T)]
}

// NewSignal constructs an empty signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{c: newChain[func(T)]()}
}

// Connect appends fn to the end of the signal's callback list and returns
// a handle that can later disconnect it. Connect never fails: allocation
// failure is not a condition this package models as an error return (see
// errors.go).
func (s *Signal[T]) Connect(fn func(T)) Connection {
	l := s.c.connect(fn)
	return newConnection(s.c, l)
}

// Emit invokes every callback still connected at the moment each is
// reached, in registration order, passing arg. If a callback panics, the
// panic propagates to the caller of Emit and callbacks after it in this
// firing are not invoked — this is a documented property, not a bug: the
// library assumes callbacks are panic-free in production.
func (s *Signal[T]) Emit(arg T) {
	s.c.enterRead()
	defer s.c.exitRead()
	for n := s.c.activeHead(); n != nil; n = n.activeNext.Load() {
		n.payload(arg)
	}
}

// DisconnectAll disconnects every callback currently connected.
func (s *Signal[T]) DisconnectAll() {
	s.c.disconnectAll()
}

// Close disconnects every callback, then drains the deferred-destroy list.
// After Close returns, the Signal must not be used again.
func (s *Signal[T]) Close() {
	s.c.close()
}
