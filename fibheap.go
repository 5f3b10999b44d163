package reactor

import "time"

// fibNode is one entry in a fibHeap. It is returned by fibHeap.insert so the
// timer service can later cancel (remove) a specific pending timer in
// better-than-linear time.
type fibNode struct {
	key    time.Time
	value  any
	degree int
	marked bool
	parent *fibNode
	child  *fibNode
	left   *fibNode
	right  *fibNode
}

// fibHeap is a Fibonacci heap ordered by ascending time.Time key, grounded
// on the amortized-cost priority queue the reference implementation's timer
// dispatcher is built around: O(1) insert and decrease-key, O(log n)
// amortized extract-min, which matters here because every firing of a
// periodic timer extracts it and inserts it again at its next deadline.
type fibHeap struct {
	min   *fibNode
	count int
}

func newFibHeap() *fibHeap { return &fibHeap{} }

func (h *fibHeap) len() int { return h.count }

// insert adds a new entry and returns its node handle.
func (h *fibHeap) insert(key time.Time, value any) *fibNode {
	n := &fibNode{key: key, value: value}
	n.left, n.right = n, n
	h.spliceIntoRootList(n)
	if h.min == nil || n.key.Before(h.min.key) {
		h.min = n
	}
	h.count++
	return n
}

// peek returns the minimum node without removing it, or nil if the heap is
// empty.
func (h *fibHeap) peek() *fibNode { return h.min }

// spliceIntoRootList inserts n (itself a singleton circular list) into the
// root list, or starts a new root list if there is none yet.
func (h *fibHeap) spliceIntoRootList(n *fibNode) {
	if h.min == nil {
		h.min = n
		n.left, n.right = n, n
		return
	}
	n.left = h.min
	n.right = h.min.right
	h.min.right.left = n
	h.min.right = n
}

// removeFromRootList unlinks n from whatever circular list it is currently
// linked into (root list or a child list), leaving n as a singleton.
func removeFromList(n *fibNode) {
	n.left.right = n.right
	n.right.left = n.left
	n.left, n.right = n, n
}

// extractMin removes and returns the minimum node, or nil if empty.
func (h *fibHeap) extractMin() *fibNode {
	z := h.min
	if z == nil {
		return nil
	}
	if z.child != nil {
		c := z.child
		for {
			next := c.right
			c.parent = nil
			removeFromList(c)
			h.spliceIntoRootList(c)
			c = next
			if c == z.child {
				break
			}
		}
	}
	if z.right == z {
		h.min = nil
	} else {
		h.min = z.right
		removeFromList(z)
		h.consolidate()
	}
	h.count--
	return z
}

func (h *fibHeap) consolidate() {
	if h.min == nil {
		return
	}
	maxDegree := 1
	for n := h.count; n > 0; n >>= 1 {
		maxDegree++
	}
	degreeTable := make([]*fibNode, maxDegree+1)

	var roots []*fibNode
	start := h.min
	for n := start; ; {
		roots = append(roots, n)
		n = n.right
		if n == start {
			break
		}
	}

	for _, x := range roots {
		d := x.degree
		for degreeTable[d] != nil {
			y := degreeTable[d]
			if y.key.Before(x.key) {
				x, y = y, x
			}
			h.link(y, x)
			degreeTable[d] = nil
			d++
		}
		degreeTable[d] = x
	}

	h.min = nil
	for _, n := range degreeTable {
		if n == nil {
			continue
		}
		n.left, n.right = n, n
		if h.min == nil {
			h.min = n
		} else {
			h.spliceIntoRootList(n)
			if n.key.Before(h.min.key) {
				h.min = n
			}
		}
	}
}

// link makes y a child of x; both are assumed to currently be roots.
func (h *fibHeap) link(y, x *fibNode) {
	removeFromList(y)
	y.parent = x
	y.marked = false
	if x.child == nil {
		x.child = y
		y.left, y.right = y, y
		x.degree++
		return
	}
	y.left = x.child
	y.right = x.child.right
	x.child.right.left = y
	x.child.right = y
	x.degree++
}

// decreaseKey lowers n's key, re-splicing it to the root list (and
// cascading the cut up its ancestor chain) if heap order would otherwise be
// violated. newKey must not be after n's current key.
func (h *fibHeap) decreaseKey(n *fibNode, newKey time.Time) {
	n.key = newKey
	p := n.parent
	if p != nil && n.key.Before(p.key) {
		h.cut(n, p)
		h.cascadingCut(p)
	}
	if n.key.Before(h.min.key) {
		h.min = n
	}
}

func (h *fibHeap) cut(n, p *fibNode) {
	if n.right == n {
		p.child = nil
	} else {
		if p.child == n {
			p.child = n.right
		}
		removeFromList(n)
	}
	p.degree--
	n.parent = nil
	n.marked = false
	n.left, n.right = n, n
	h.spliceIntoRootList(n)
}

func (h *fibHeap) cascadingCut(n *fibNode) {
	p := n.parent
	if p == nil {
		return
	}
	if !n.marked {
		n.marked = true
		return
	}
	h.cut(n, p)
	h.cascadingCut(p)
}

// remove deletes an arbitrary node from the heap, used when a timer is
// cancelled before it fires (not necessarily the current minimum).
func (h *fibHeap) remove(n *fibNode) {
	if n.parent != nil {
		h.cut(n, n.parent)
		h.cascadingCut(n.parent)
	}
	if n.child != nil {
		c := n.child
		for {
			next := c.right
			c.parent = nil
			removeFromList(c)
			h.spliceIntoRootList(c)
			c = next
			if c == n.child {
				break
			}
		}
	}
	wasMin := h.min == n
	if n.right == n {
		h.min = nil
	} else {
		if h.min == n {
			h.min = n.right
		}
		removeFromList(n)
	}
	h.count--
	if wasMin && h.count > 0 {
		h.consolidate()
	}
}
