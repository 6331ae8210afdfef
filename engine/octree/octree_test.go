package octree

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) common.AABB {
	return common.AABB{Min: mgl32.Vec3{minX, minY, minZ}, Max: mgl32.Vec3{maxX, maxY, maxZ}}
}

func cube(lo, hi float32) common.AABB { return box(lo, lo, lo, hi, hi, hi) }

// boxFrustum returns a frustum whose planes are the faces of b.
func boxFrustum(b common.AABB) common.Frustum {
	var f common.Frustum
	f.Planes[common.FrustumLeft] = common.Plane{Normal: mgl32.Vec3{1, 0, 0}, Distance: -b.Min[0]}
	f.Planes[common.FrustumRight] = common.Plane{Normal: mgl32.Vec3{-1, 0, 0}, Distance: b.Max[0]}
	f.Planes[common.FrustumTop] = common.Plane{Normal: mgl32.Vec3{0, -1, 0}, Distance: b.Max[1]}
	f.Planes[common.FrustumBottom] = common.Plane{Normal: mgl32.Vec3{0, 1, 0}, Distance: -b.Min[1]}
	f.Planes[common.FrustumNear] = common.Plane{Normal: mgl32.Vec3{0, 0, -1}, Distance: b.Max[2]}
	f.Planes[common.FrustumFar] = common.Plane{Normal: mgl32.Vec3{0, 0, 1}, Distance: -b.Min[2]}
	return f
}

// holder returns the node storing id.
func holder(t *testing.T, tree *Octree, id common.ObjectID) NodeRef {
	t.Helper()
	for i := 0; i < tree.NodeCount(); i++ {
		n := tree.Node(NodeID(i))
		if slices.Contains(n.Objects(), id) {
			return n
		}
	}
	t.Fatalf("object %d not stored", id)
	return NodeRef{}
}

func TestOctantOrderAndBounds(t *testing.T) {
	assert.Equal(t, Octant(0), LowerLeftBack)
	assert.Equal(t, Octant(1), LowerLeftFront)
	assert.Equal(t, Octant(2), LowerRightBack)
	assert.Equal(t, Octant(7), UpperRightFront)
	assert.Equal(t, "UpperLeftFront", UpperLeftFront.String())

	parent := cube(-10, 10)
	assert.Equal(t, box(-10, -10, -10, 0, 0, 0), LowerLeftBack.Bounds(parent))
	assert.Equal(t, box(0, 0, 0, 10, 10, 10), UpperRightFront.Bounds(parent))
	assert.Equal(t, box(0, -10, 0, 10, 0, 10), LowerRightFront.Bounds(parent))
	assert.Equal(t, box(-10, 0, -10, 0, 10, 0), UpperLeftBack.Bounds(parent))

	union := common.EmptyAABB()
	for o := Octant(0); o < octantCount; o++ {
		union = union.Extend(o.Bounds(parent))
	}
	assert.Equal(t, parent, union)
}

func TestAddObjectPlacement(t *testing.T) {
	tree := New(cube(-10, 10))
	tree.AddObject(0, cube(0, 1))
	tree.AddObject(1, cube(-1, 1))
	tree.AddObject(2, cube(20, 21))
	tree.AddObject(3, box(1, 1, 1, 9, 9, 9))

	n := holder(t, tree, 0)
	assert.Equal(t, 4, n.Depth())
	assert.Equal(t, cube(0, 1.25), n.Volume())
	assert.True(t, n.Volume().Contains(cube(0, 1)))

	assert.Equal(t, 0, holder(t, tree, 1).Depth(), "straddling object stays at the root")
	assert.Equal(t, 0, holder(t, tree, 2).Depth(), "object outside the root is stored at the root")

	n = holder(t, tree, 3)
	assert.Equal(t, 1, n.Depth())
	assert.Equal(t, cube(0, 10), n.Volume())

	child, ok := tree.Root().Child(UpperRightFront)
	require.True(t, ok)
	assert.Equal(t, n.ID(), child.ID())
	_, ok = tree.Root().Child(LowerLeftBack)
	assert.False(t, ok, "children are created only when needed")

	assert.Equal(t, 4, tree.Len())
}

func TestAddObjectLimits(t *testing.T) {
	t.Run("max depth", func(t *testing.T) {
		tree := New(cube(-10, 10), WithMaxDepth(2))
		tree.AddObject(0, cube(0, 1))
		n := holder(t, tree, 0)
		assert.Equal(t, 2, n.Depth())
		assert.Equal(t, cube(0, 5), n.Volume())
	})
	t.Run("depth zero keeps everything at the root", func(t *testing.T) {
		tree := New(cube(-10, 10), WithMaxDepth(0))
		tree.AddObject(0, cube(0, 1))
		tree.AddObject(1, cube(-9, -8))
		assert.Equal(t, 1, tree.NodeCount())
		assert.Len(t, tree.Root().Objects(), 2)
	})
	t.Run("min node size", func(t *testing.T) {
		tree := New(cube(-10, 10), WithMinNodeSize(5))
		tree.AddObject(0, cube(0, 1))
		assert.Equal(t, cube(0, 5), holder(t, tree, 0).Volume())
	})
}

func TestExactlyOnePlacement(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tree := New(cube(-100, 100))
	const n = 2000
	for i := 0; i < n; i++ {
		c := mgl32.Vec3{r.Float32()*200 - 100, r.Float32()*200 - 100, r.Float32()*200 - 100}
		half := r.Float32() * 5
		tree.AddObject(common.ObjectID(i), common.NewAABB(c.Sub(mgl32.Vec3{half, half, half}), c.Add(mgl32.Vec3{half, half, half})))
	}

	seen := make(map[common.ObjectID]int)
	for i := 0; i < tree.NodeCount(); i++ {
		for _, id := range tree.Node(NodeID(i)).Objects() {
			seen[id]++
		}
	}
	require.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "object %d", id)
	}
}

func TestPreconditionsPanic(t *testing.T) {
	assert.Panics(t, func() { New(cube(1, 1)) })
	assert.Panics(t, func() { New(box(1, 0, 0, 0, 1, 1)) })
	assert.Panics(t, func() { New(common.EmptyAABB()) })
	assert.Panics(t, func() { New(cube(-1, 1), WithMaxDepth(-1)) })

	tree := New(cube(-1, 1))
	assert.Panics(t, func() { tree.AddObject(0, box(1, 0, 0, 0, 1, 1)) })
	assert.NotPanics(t, func() { tree.AddObject(1, cube(0.5, 0.5)) }, "point objects are valid")

	tree.Freeze()
	assert.Panics(t, func() { tree.AddObject(2, cube(0, 0.1)) })
}

func TestStats(t *testing.T) {
	tree := New(cube(-10, 10))
	tree.AddObject(0, cube(-1, 1))
	tree.AddObject(1, cube(0, 1))
	tree.AddObject(2, box(1, 1, 1, 9, 9, 9))

	st := tree.Stats()
	assert.Equal(t, 3, st.Objects)
	assert.Equal(t, 5, st.Nodes)
	assert.Equal(t, 4, st.MaxDepth)
	assert.Equal(t, 1, st.RootObjects)
	assert.Equal(t, 1, st.LeafNodes)
	assert.Equal(t, []int{1, 1, 0, 0, 1}, st.ObjectsAtDepth)
}
