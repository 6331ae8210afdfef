package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/registry"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointObject(reg *registry.Registry, p mgl32.Vec3) {
	reg.Add(
		registry.Mesh{IndexBuffer: 1, IndexCount: 3, IndexFormat: gpu.IndexFormatUint16, Bounds: common.AABB{Min: p, Max: p}},
		registry.Material{},
		registry.Transform{Model: mgl32.Translate3D(p[0], p[1], p[2])},
	)
}

func TestBuildEmptyRegistry(t *testing.T) {
	_, err := Build(registry.New(0))
	assert.ErrorIs(t, err, registry.ErrEmpty)
}

func TestBuildDegenerateBounds(t *testing.T) {
	reg := registry.New(2)
	pointObject(reg, mgl32.Vec3{1, 2, 3})
	pointObject(reg, mgl32.Vec3{1, 2, 3})

	_, err := Build(reg)
	assert.ErrorIs(t, err, ErrDegenerateBounds)
}

func TestBuildFlatSceneIsAccepted(t *testing.T) {
	reg := registry.New(2)
	pointObject(reg, mgl32.Vec3{0, 0, 0})
	pointObject(reg, mgl32.Vec3{10, 0, 10})

	sc, err := Build(reg)
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Octree.Len())
}

func TestBuildIndexesEveryObject(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()

	reg, err := GenerateGrid(d, GridConfig{Counts: [3]int{5, 3, 4}, Spacing: 2.5, CubeSize: 1, Palette: 4})
	require.NoError(t, err)
	sc, err := Build(reg, WithOctreeOptions(octree.WithMaxDepth(4)))
	require.NoError(t, err)

	assert.Equal(t, 60, sc.Octree.Len())
	assert.Equal(t, sc.Bounds, sc.Octree.Bounds())
	assert.LessOrEqual(t, sc.Octree.Stats().MaxDepth, 4)

	everything := common.ExtractFrustum(mgl32.Ortho(-100, 100, -100, 100, -100, 100))
	ids, _ := octree.NewTraversal(0).Collect(sc.Octree, everything, nil)
	assert.Len(t, ids, 60)

	seen := make(map[common.ObjectID]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "object %d emitted twice", id)
		seen[id] = true
	}
}

func TestGenerateGrid(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()

	cfg := GridConfig{Counts: [3]int{3, 2, 3}, Spacing: 4, CubeSize: 2, Palette: 2}
	reg, err := GenerateGrid(d, cfg)
	require.NoError(t, err)
	require.Equal(t, cfg.Count(), reg.Len())

	bounds, err := reg.Bounds()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-5, -3, -5}, bounds.Min[:], 1e-5)
	assert.InDeltaSlice(t, []float32{5, 3, 5}, bounds.Max[:], 1e-5)

	first := reg.Mesh(0)
	assert.Equal(t, uint32(36), first.IndexCount)
	assert.Equal(t, gpu.IndexFormatUint32, first.IndexFormat)
	assert.Equal(t, 24*VertexStride, d.BufferSize(first.VertexBuffer))
	assert.Equal(t, 36*4, d.BufferSize(first.IndexBuffer))

	diffuse := map[gpu.TextureHandle]bool{}
	for i := 0; i < reg.Len(); i++ {
		id := common.ObjectID(i)
		assert.Equal(t, first.VertexBuffer, reg.Mesh(id).VertexBuffer)
		box := reg.Mesh(id).Bounds
		size := box.Size()
		assert.InDeltaSlice(t, []float32{2, 2, 2}, size[:], 1e-5)
		assert.True(t, bounds.Contains(box))
		diffuse[reg.Material(id).Diffuse] = true
	}
	assert.Len(t, diffuse, 2)
}

func TestGenerateGridRejectsEmptyLayout(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()

	_, err := GenerateGrid(d, GridConfig{Counts: [3]int{0, 1, 1}, Spacing: 1, CubeSize: 1})
	assert.Error(t, err)
	_, err = GenerateGrid(d, GridConfig{Counts: [3]int{1, 1, 1}, Spacing: 1, CubeSize: 0})
	assert.Error(t, err)
}

func TestCube(t *testing.T) {
	g := Cube(2)
	require.Len(t, g.Vertices, 24)
	require.Len(t, g.Indices, 36)

	box := common.AABBFromPoints(g.Positions(), mgl32.Ident4())
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, box.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, box.Max)

	// Every triangle faces away from the centre.
	for i := 0; i < len(g.Indices); i += 3 {
		a := mgl32.Vec3(g.Vertices[g.Indices[i]].Position)
		b := mgl32.Vec3(g.Vertices[g.Indices[i+1]].Position)
		c := mgl32.Vec3(g.Vertices[g.Indices[i+2]].Position)
		n := b.Sub(a).Cross(c.Sub(a))
		assert.Greater(t, n.Dot(a.Add(b).Add(c)), float32(0), "triangle %d", i/3)
	}
}

func TestUploadedMeshWorldBounds(t *testing.T) {
	d := headless.NewDevice()
	defer d.Release()

	m, err := Upload(d, "cube", Cube(1))
	require.NoError(t, err)
	box := m.WorldBounds(mgl32.Translate3D(10, 0, -4))
	assert.InDeltaSlice(t, []float32{9.5, -0.5, -4.5}, box.Min[:], 1e-6)
	assert.InDeltaSlice(t, []float32{10.5, 0.5, -3.5}, box.Max[:], 1e-6)
}
