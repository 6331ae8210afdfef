package octree

import "github.com/Carmen-Shannon/oxy-cull/common"

// VisitStats counts the work done by one traversal.
type VisitStats struct {
	// NodesVisited is the number of nodes accepted and popped from the queue.
	NodesVisited int
	// NodesCulled is the number of existing nodes rejected by the frustum test.
	NodesCulled int
	// ObjectsEmitted is the number of objects passed to the emit callback.
	ObjectsEmitted int
}

// Add accumulates o into s.
func (s *VisitStats) Add(o VisitStats) {
	s.NodesVisited += o.NodesVisited
	s.NodesCulled += o.NodesCulled
	s.ObjectsEmitted += o.ObjectsEmitted
}

// Traversal is the reusable breadth-first queue for visibility queries. The queue keeps its
// capacity between calls so steady-state traversals do not allocate.
//
// A Traversal must not be used by two goroutines at once. Give every concurrent caller its own.
type Traversal struct {
	queue []NodeID
	head  int
}

// NewTraversal creates a traversal whose queue is pre-sized for capacity nodes.
func NewTraversal(capacity int) *Traversal {
	return &Traversal{queue: make([]NodeID, 0, capacity)}
}

// Cap returns the current queue capacity.
func (q *Traversal) Cap() int { return cap(q.queue) }

func (q *Traversal) reset() {
	q.queue = q.queue[:0]
	q.head = 0
}

func (q *Traversal) push(id NodeID) {
	q.queue = append(q.queue, id)
}

func (q *Traversal) pop() (NodeID, bool) {
	if q.head == len(q.queue) {
		return NoNode, false
	}
	id := q.queue[q.head]
	q.head++
	return id, true
}

// Visit emits every object stored in a node whose volume intersects f.
//
// Nodes are visited breadth-first starting at the root; siblings are visited in octant
// enumeration order. Objects of an accepted node are emitted in insertion order without an
// individual frustum test.
//
// Parameters:
//   - t: the tree to query
//   - f: the view frustum of the current frame
//   - emit: called once per visible object
//
// Returns:
//   - VisitStats: node and object counts for the query
func (q *Traversal) Visit(t *Octree, f common.Frustum, emit func(id common.ObjectID)) VisitStats {
	var st VisitStats
	q.reset()

	if !t.nodes[0].volume.IntersectsFrustum(f) {
		st.NodesCulled++
		return st
	}
	q.push(0)

	for {
		id, ok := q.pop()
		if !ok {
			break
		}
		n := &t.nodes[id]
		st.NodesVisited++

		for _, obj := range n.objects {
			emit(obj)
		}
		st.ObjectsEmitted += len(n.objects)

		for _, c := range n.children {
			if c == NoNode {
				continue
			}
			if t.nodes[c].volume.IntersectsFrustum(f) {
				q.push(c)
			} else {
				st.NodesCulled++
			}
		}
	}
	return st
}

// Collect appends every visible object to dst in visitation order and returns the extended slice.
func (q *Traversal) Collect(t *Octree, f common.Frustum, dst []common.ObjectID) ([]common.ObjectID, VisitStats) {
	st := q.Visit(t, f, func(id common.ObjectID) {
		dst = append(dst, id)
	})
	return dst, st
}
