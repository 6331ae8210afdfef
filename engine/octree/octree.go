// Package octree implements the static spatial index used for visibility culling.
//
// An Octree is built once at load time from the world-space bounds of every scene object and is
// read-only afterwards, so any number of traversals may run over it concurrently as long as each
// one owns its Traversal scratch.
package octree

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// NodeID indexes a node in the octree's node arena.
type NodeID int32

// NoNode marks an empty child slot.
const NoNode NodeID = -1

const (
	defaultMaxDepth = 8
	// maxSupportedDepth bounds the per-depth statistics table.
	maxSupportedDepth = 32
)

type node struct {
	volume   common.AABB
	depth    uint8
	objects  []common.ObjectID
	children [octantCount]NodeID
}

// Octree is an arena-backed octree over object bounding boxes.
// Nodes are appended to a contiguous slice and addressed by NodeID; the root is always node 0.
type Octree struct {
	nodes       []node
	objects     int
	maxDepth    int
	minNodeSize float32
	frozen      bool
	logger      log.Logger
}

// New creates an octree whose root spans bounds.
//
// Parameters:
//   - bounds: the scene volume. It must not be degenerate (see common.AABB.Degenerate)
//   - opts: functional options (max depth, min node size, logger)
//
// Returns:
//   - *Octree: the new tree holding a single empty root node
func New(bounds common.AABB, opts ...OctreeBuilderOption) *Octree {
	if bounds.Degenerate() {
		panic(fmt.Sprintf("octree: degenerate root bounds %v", bounds))
	}

	t := &Octree{
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.maxDepth < 0 || t.maxDepth > maxSupportedDepth {
		panic(fmt.Sprintf("octree: max depth %d out of range [0, %d]", t.maxDepth, maxSupportedDepth))
	}

	t.nodes = append(t.nodes, newNode(bounds, 0))
	return t
}

func newNode(volume common.AABB, depth uint8) node {
	n := node{volume: volume, depth: depth}
	for i := range n.children {
		n.children[i] = NoNode
	}
	return n
}

// AddObject inserts id with its world-space bounds.
//
// Starting at the root, the object descends into the single child octant that fully contains its
// bounds, creating children on demand, until it straddles a split plane, the maximum depth is
// reached or the next child would be smaller than the minimum node size. The object is stored at
// the node where descent stops. Objects that do not fit inside the root are stored at the root.
//
// Parameters:
//   - id: the object handle
//   - bounds: the object's world-space box; it must be Valid
func (t *Octree) AddObject(id common.ObjectID, bounds common.AABB) {
	if t.frozen {
		panic("octree: AddObject after Freeze")
	}
	if !bounds.Valid() {
		panic(fmt.Sprintf("octree: invalid bounds %v for object %d", bounds, id))
	}

	cur := NodeID(0)
	for int(t.nodes[cur].depth) < t.maxDepth {
		volume := t.nodes[cur].volume
		o, ok := octantOf(volume, bounds)
		if !ok {
			break
		}
		child := t.nodes[cur].children[o]
		if child == NoNode {
			sub := o.Bounds(volume)
			if t.minNodeSize > 0 && minEdge(sub) < t.minNodeSize {
				break
			}
			child = NodeID(len(t.nodes))
			t.nodes = append(t.nodes, newNode(sub, t.nodes[cur].depth+1))
			t.nodes[cur].children[o] = child
		}
		cur = child
	}

	t.nodes[cur].objects = append(t.nodes[cur].objects, id)
	t.objects++
}

// Freeze marks the tree as complete. Any later AddObject panics.
func (t *Octree) Freeze() {
	t.frozen = true
	if t.logger != nil {
		st := t.Stats()
		t.logger.Debugf("octree frozen: %d objects in %d nodes, max depth %d, %d at root",
			st.Objects, st.Nodes, st.MaxDepth, st.RootObjects)
	}
}

// Root returns a read-only handle to the root node.
func (t *Octree) Root() NodeRef {
	return NodeRef{tree: t, id: 0}
}

// Node returns a handle to the node with the given ID.
func (t *Octree) Node(id NodeID) NodeRef {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("octree: node %d out of range", id))
	}
	return NodeRef{tree: t, id: id}
}

// Bounds returns the root volume.
func (t *Octree) Bounds() common.AABB { return t.nodes[0].volume }

// Len returns the number of inserted objects.
func (t *Octree) Len() int { return t.objects }

// NodeCount returns the number of allocated nodes, including the root.
func (t *Octree) NodeCount() int { return len(t.nodes) }

// MaxDepth returns the configured depth limit.
func (t *Octree) MaxDepth() int { return t.maxDepth }

func minEdge(b common.AABB) float32 {
	s := b.Size()
	return min(s[0], s[1], s[2])
}

// NodeRef is a read-only view of one node.
type NodeRef struct {
	tree *Octree
	id   NodeID
}

// ID returns the node's arena index.
func (n NodeRef) ID() NodeID { return n.id }

// Volume returns the node's subvolume of the scene bounds.
func (n NodeRef) Volume() common.AABB { return n.tree.nodes[n.id].volume }

// Depth returns the distance from the root. The root has depth 0.
func (n NodeRef) Depth() int { return int(n.tree.nodes[n.id].depth) }

// Objects returns the objects stored directly at this node. The slice must not be modified.
func (n NodeRef) Objects() []common.ObjectID { return n.tree.nodes[n.id].objects }

// Child returns the child in octant o, if it exists.
func (n NodeRef) Child(o Octant) (NodeRef, bool) {
	c := n.tree.nodes[n.id].children[o]
	if c == NoNode {
		return NodeRef{}, false
	}
	return NodeRef{tree: n.tree, id: c}, true
}

// Stats summarises the shape of a built tree.
type Stats struct {
	Objects        int
	Nodes          int
	MaxDepth       int
	RootObjects    int
	LeafNodes      int
	ObjectsAtDepth []int
}

// Stats walks the arena and returns per-depth object counts.
func (t *Octree) Stats() Stats {
	st := Stats{Objects: t.objects, Nodes: len(t.nodes), RootObjects: len(t.nodes[0].objects)}
	var perDepth [maxSupportedDepth + 1]int
	for i := range t.nodes {
		n := &t.nodes[i]
		d := int(n.depth)
		perDepth[d] += len(n.objects)
		if d > st.MaxDepth {
			st.MaxDepth = d
		}
		leaf := true
		for _, c := range n.children {
			if c != NoNode {
				leaf = false
				break
			}
		}
		if leaf {
			st.LeafNodes++
		}
	}
	st.ObjectsAtDepth = append([]int(nil), perDepth[:st.MaxDepth+1]...)
	return st
}
