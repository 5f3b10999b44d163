package reactor

import (
	"testing"
	"time"
)

func TestFibHeapExtractsInKeyOrder(t *testing.T) {
	h := newFibHeap()
	base := time.Unix(1000, 0)
	order := []int{5, 1, 4, 2, 3, 0}
	for _, n := range order {
		h.insert(base.Add(time.Duration(n)*time.Second), n)
	}
	var got []int
	for h.len() > 0 {
		n := h.extractMin()
		got = append(got, n.value.(int))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("extraction order = %v, want ascending 0..5", got)
		}
	}
}

func TestFibHeapDecreaseKeyReordersMinimum(t *testing.T) {
	h := newFibHeap()
	base := time.Unix(2000, 0)
	h.insert(base.Add(10*time.Second), "a")
	h.insert(base.Add(20*time.Second), "b")
	c := h.insert(base.Add(30*time.Second), "c")

	h.decreaseKey(c, base.Add(5*time.Second))
	if got := h.peek().value.(string); got != "c" {
		t.Fatalf("peek = %q, want %q after decreasing c below a and b", got, "c")
	}
}

func TestFibHeapRemoveArbitraryNode(t *testing.T) {
	h := newFibHeap()
	base := time.Unix(3000, 0)
	h.insert(base, "min")
	mid := h.insert(base.Add(time.Second), "mid")
	h.insert(base.Add(2*time.Second), "max")

	h.remove(mid)
	if h.len() != 2 {
		t.Fatalf("len = %d, want 2 after removing the middle node", h.len())
	}

	first := h.extractMin()
	if first.value.(string) != "min" {
		t.Fatalf("first extracted = %v, want min", first.value)
	}
	second := h.extractMin()
	if second.value.(string) != "max" {
		t.Fatalf("second extracted = %v, want max", second.value)
	}
}

// TestFibHeapLinkThenCutKeepsDegreeNonNegative forces consolidate to link
// two degree-0 roots into a parent/child pair, then cuts the child back out
// (as TimerConnection.Suspend/Disconnect does via heap.remove). Before the
// link method incremented the parent's degree on its first child, this
// sequence drove degree negative and a later consolidate would panic
// indexing degreeTable by a negative degree.
func TestFibHeapLinkThenCutKeepsDegreeNonNegative(t *testing.T) {
	h := newFibHeap()
	base := time.Unix(5000, 0)
	h.insert(base, 0)
	n1 := h.insert(base.Add(1*time.Second), 1)
	n2 := h.insert(base.Add(2*time.Second), 2)
	n3 := h.insert(base.Add(3*time.Second), 3)

	h.extractMin() // removes the node keyed 0, forcing a consolidate that links two of the remaining roots

	var parent, child *fibNode
	for _, n := range []*fibNode{n1, n2, n3} {
		if n.child != nil {
			parent, child = n, n.child
			break
		}
	}
	if parent == nil {
		t.Fatalf("expected consolidate to link two roots into a parent/child pair")
	}
	if parent.degree != 1 {
		t.Fatalf("parent.degree = %d, want 1 after acquiring its first child", parent.degree)
	}

	h.remove(child)
	if parent.degree != 0 {
		t.Fatalf("parent.degree = %d, want 0 after cutting its only child", parent.degree)
	}

	// A further insert and drain must not panic indexing degreeTable by a
	// negative degree, and must still extract in ascending key order.
	h.insert(base.Add(4*time.Second), 4)
	var got []int
	for h.len() > 0 {
		got = append(got, h.extractMin().value.(int))
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("extraction order = %v, want ascending", got)
		}
	}
}

func TestFibHeapRemoveCurrentMinimum(t *testing.T) {
	h := newFibHeap()
	base := time.Unix(4000, 0)
	min := h.insert(base, "min")
	h.insert(base.Add(time.Second), "next")

	h.remove(min)
	if got := h.peek().value.(string); got != "next" {
		t.Fatalf("peek = %q, want %q after removing the minimum", got, "next")
	}
}
