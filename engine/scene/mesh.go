package scene

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the interleaved vertex layout shared by every generated mesh: position, normal, uv.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// VertexStride is the size of one Vertex in bytes.
const VertexStride = 32

// Geometry is CPU-side mesh data before upload.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

// Positions returns the vertex positions, used to compute world bounds.
func (g Geometry) Positions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(g.Vertices))
	for i, v := range g.Vertices {
		out[i] = v.Position
	}
	return out
}

// Cube returns a unit cube centred on the origin with per-face normals, wound counter-clockwise
// when viewed from outside.
func Cube(size float32) Geometry {
	h := size / 2
	faces := [6]struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}

	g := Geometry{
		Vertices: make([]Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for _, f := range faces {
		base := uint32(len(g.Vertices))
		corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			p := f.normal.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1])).Mul(h)
			g.Vertices = append(g.Vertices, Vertex{
				Position: p,
				Normal:   f.normal,
				UV:       [2]float32{(c[0] + 1) / 2, 1 - (c[1]+1)/2},
			})
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}

// UploadedMesh is a Geometry whose buffers live on the device.
type UploadedMesh struct {
	VertexBuffer gpu.BufferHandle
	IndexBuffer  gpu.BufferHandle
	IndexCount   uint32
	Local        common.AABB
	positions    []mgl32.Vec3
}

// Upload creates the vertex and index buffers of g.
//
// Parameters:
//   - alloc: the resource allocator of the target device
//   - label: debug label prefix
//   - g: geometry to upload
//
// Returns:
//   - UploadedMesh: the device handles and the object-space bounds
//   - error: error if either buffer could not be created
func Upload(alloc gpu.Allocator, label string, g Geometry) (UploadedMesh, error) {
	vb, err := alloc.CreateBuffer(label+" Vertices", gpu.BufferUsageVertex, common.SliceToBytes(g.Vertices))
	if err != nil {
		return UploadedMesh{}, err
	}
	ib, err := alloc.CreateBuffer(label+" Indices", gpu.BufferUsageIndex, common.SliceToBytes(g.Indices))
	if err != nil {
		return UploadedMesh{}, err
	}
	positions := g.Positions()
	return UploadedMesh{
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexCount:   uint32(len(g.Indices)),
		Local:        common.AABBFromPoints(positions, mgl32.Ident4()),
		positions:    positions,
	}, nil
}

// WorldBounds returns the box enclosing the mesh's vertices transformed by model.
func (m UploadedMesh) WorldBounds(model mgl32.Mat4) common.AABB {
	return common.AABBFromPoints(m.positions, model)
}
