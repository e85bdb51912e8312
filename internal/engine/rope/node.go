package rope

// nodeID addresses a node in the tree arena.
type nodeID int32

// nilNode marks an absent child or an empty tree.
const nilNode nodeID = -1

// node is one arena slot.
// Leaf nodes (left == nilNode) carry a chunk; internal nodes always own
// exactly two children and carry no text of their own.
type node struct {
	left, right nodeID
	height      int32 // 1 for leaves

	// Aggregated metrics for the entire subtree
	length int // runes
	bytes  int
	lines  int

	chunk Chunk // Leaf payload
}

func (n *node) isLeaf() bool {
	return n.left == nilNode
}

// alloc takes a slot from the free list or grows the arena.
func (t *Tree) alloc(n node) nodeID {
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return nodeID(len(t.nodes) - 1)
}

// release returns a slot to the free list.
func (t *Tree) release(id nodeID) {
	t.nodes[id] = node{left: nilNode, right: nilNode}
	t.free = append(t.free, id)
}

// releaseSubtree releases every node below and including id.
func (t *Tree) releaseSubtree(id nodeID) {
	if id == nilNode {
		return
	}
	n := t.nodes[id]
	if !n.isLeaf() {
		t.releaseSubtree(n.left)
		t.releaseSubtree(n.right)
	}
	t.release(id)
}

func (t *Tree) newLeaf(c Chunk) nodeID {
	return t.alloc(node{
		left:   nilNode,
		right:  nilNode,
		height: 1,
		length: c.Len(),
		bytes:  c.ByteLen(),
		lines:  c.Lines(),
		chunk:  c,
	})
}

func (t *Tree) newInternal(l, r nodeID) nodeID {
	id := t.alloc(node{left: l, right: r})
	t.update(id)
	return id
}

// setChunk replaces a leaf's chunk and refreshes its own metrics.
// Ancestors must be refreshed by the caller.
func (t *Tree) setChunk(id nodeID, c Chunk) {
	n := &t.nodes[id]
	n.chunk = c
	n.length = c.Len()
	n.bytes = c.ByteLen()
	n.lines = c.Lines()
}

func (t *Tree) height(id nodeID) int32 {
	if id == nilNode {
		return 0
	}
	return t.nodes[id].height
}

func (t *Tree) length(id nodeID) int {
	if id == nilNode {
		return 0
	}
	return t.nodes[id].length
}

// update recomputes an internal node's metrics from its children.
func (t *Tree) update(id nodeID) {
	n := &t.nodes[id]
	if n.isLeaf() {
		return
	}
	l, r := &t.nodes[n.left], &t.nodes[n.right]
	n.length = l.length + r.length
	n.bytes = l.bytes + r.bytes
	n.lines = l.lines + r.lines
	n.height = 1 + max(l.height, r.height)
}

func (t *Tree) rotateRight(id nodeID) nodeID {
	x := t.nodes[id].left
	t.nodes[id].left = t.nodes[x].right
	t.nodes[x].right = id
	t.update(id)
	t.update(x)
	return x
}

func (t *Tree) rotateLeft(id nodeID) nodeID {
	x := t.nodes[id].right
	t.nodes[id].right = t.nodes[x].left
	t.nodes[x].left = id
	t.update(id)
	t.update(x)
	return x
}

// rebalance restores the AVL property at id, assuming both subtrees are
// balanced and their heights differ by at most two.
func (t *Tree) rebalance(id nodeID) nodeID {
	t.update(id)
	n := t.nodes[id]
	if n.isLeaf() {
		return id
	}
	bf := t.height(n.left) - t.height(n.right)
	switch {
	case bf > 1:
		l := t.nodes[n.left]
		if t.height(l.left) < t.height(l.right) {
			t.nodes[id].left = t.rotateLeft(n.left)
		}
		return t.rotateRight(id)
	case bf < -1:
		r := t.nodes[n.right]
		if t.height(r.right) < t.height(r.left) {
			t.nodes[id].right = t.rotateRight(n.right)
		}
		return t.rotateLeft(id)
	}
	return id
}

// join concatenates two balanced trees. Cost is O(|h(l) - h(r)|).
func (t *Tree) join(l, r nodeID) nodeID {
	if l == nilNode {
		return r
	}
	if r == nilNode {
		return l
	}
	hl, hr := t.height(l), t.height(r)
	switch {
	case hl > hr+1:
		return t.joinRight(l, r)
	case hr > hl+1:
		return t.joinLeft(l, r)
	}
	return t.newInternal(l, r)
}

// joinRight descends the right spine of l until it meets a subtree short
// enough to pair with r.
func (t *Tree) joinRight(l, r nodeID) nodeID {
	right := t.nodes[l].right
	if t.height(right) <= t.height(r)+1 {
		t.nodes[l].right = t.newInternal(right, r)
	} else {
		t.nodes[l].right = t.joinRight(right, r)
	}
	return t.rebalance(l)
}

func (t *Tree) joinLeft(l, r nodeID) nodeID {
	left := t.nodes[r].left
	if t.height(left) <= t.height(l)+1 {
		t.nodes[r].left = t.newInternal(l, left)
	} else {
		t.nodes[r].left = t.joinLeft(l, left)
	}
	return t.rebalance(r)
}

// split cuts the subtree at rune offset pos into [0, pos) and [pos, len).
// A leaf straddling pos is cut into exactly two leaves.
func (t *Tree) split(id nodeID, pos int) (nodeID, nodeID) {
	if id == nilNode {
		return nilNode, nilNode
	}
	n := t.nodes[id]
	if pos <= 0 {
		return nilNode, id
	}
	if pos >= n.length {
		return id, nilNode
	}

	if n.isLeaf() {
		a, b := n.chunk.Split(pos)
		t.setChunk(id, a)
		return id, t.newLeaf(b)
	}

	l, r := n.left, n.right
	t.release(id)
	ll := t.nodes[l].length
	if pos < ll {
		a, b := t.split(l, pos)
		return a, t.join(b, r)
	}
	a, b := t.split(r, pos-ll)
	return t.join(l, a), b
}

// build creates a perfectly balanced subtree over chunks.
func (t *Tree) build(chunks []Chunk) nodeID {
	switch len(chunks) {
	case 0:
		return nilNode
	case 1:
		return t.newLeaf(chunks[0])
	}
	mid := len(chunks) / 2
	l := t.build(chunks[:mid])
	r := t.build(chunks[mid:])
	return t.newInternal(l, r)
}

// removeLeaf unlinks the leaf starting at pos within the subtree rooted at id
// and returns the new subtree root. The parent of the removed leaf is
// replaced by its other child and the path is retraced.
func (t *Tree) removeLeaf(id nodeID, pos int) nodeID {
	n := t.nodes[id]
	if n.isLeaf() {
		t.release(id)
		return nilNode
	}
	if ll := t.nodes[n.left].length; pos < ll {
		nl := t.removeLeaf(n.left, pos)
		if nl == nilNode {
			t.release(id)
			return n.right
		}
		t.nodes[id].left = nl
	} else {
		nr := t.removeLeaf(n.right, pos-ll)
		if nr == nilNode {
			t.release(id)
			return n.left
		}
		t.nodes[id].right = nr
	}
	return t.rebalance(id)
}
