package reactor

import (
	"fmt"
	"testing"
)

func TestSignalDeliveryOrder(t *testing.T) {
	s := NewSignal[int]()
	defer s.Close()

	var trace []string
	a := s.Connect(func(x int) { trace = append(trace, fmt.Sprintf("a%d", x)) })
	s.Connect(func(x int) { trace = append(trace, fmt.Sprintf("b%d", x)) })

	s.Emit(7)
	s.Emit(3)
	a.Disconnect()
	s.Emit(1)

	want := []string{"a7", "b7", "a3", "b3", "b1"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestSignalDisconnectDuringFire(t *testing.T) {
	s := NewSignal[int]()
	defer s.Close()

	var trace []string
	var selfConn Connection
	selfConn = s.Connect(func(int) {
		trace = append(trace, "c")
		selfConn.Disconnect()
	})
	s.Connect(func(int) { trace = append(trace, "after") })

	s.Emit(0)
	s.Emit(0)

	want := []string{"c", "after", "after"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestSignalSelfCancellingMutualPair(t *testing.T) {
	s := NewSignal[int]()
	defer s.Close()

	var count int
	var connA, connB Connection
	connA = s.Connect(func(int) {
		count++
		connB.Disconnect()
	})
	connB = s.Connect(func(int) {
		count++
		connA.Disconnect()
	})

	s.Emit(0)

	if count != 1 {
		t.Fatalf("count = %d, want exactly 1 (whichever of the mutually-cancelling pair runs first)", count)
	}
}

func TestSignalCloseZeroesRefcounts(t *testing.T) {
	s := NewSignal[int]()
	l1 := s.c.connect(func(int) {})
	l2 := s.c.connect(func(int) {})
	s.Close()

	if l1.refCount() != 0 {
		t.Fatalf("l1 refcount = %d, want 0 after chain close", l1.refCount())
	}
	if l2.refCount() != 0 {
		t.Fatalf("l2 refcount = %d, want 0 after chain close", l2.refCount())
	}
}
