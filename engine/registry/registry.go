// Package registry stores the per-object components the renderer reads while recording:
// mesh buffers and bounds, material textures and model transforms, addressed by common.ObjectID.
//
// Components are stored as parallel slices indexed by ObjectID. The registry is filled once at load
// time and only read afterwards, so concurrent readers need no locking.
package registry

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrEmpty is returned by Bounds when no object has been added.
var ErrEmpty = errors.New("registry: no objects")

// Mesh is the geometry of one object.
type Mesh struct {
	VertexBuffer gpu.BufferHandle
	IndexBuffer  gpu.BufferHandle
	// IndexCount is the number of indices drawn, which is the index buffer size divided by the
	// index size.
	IndexCount  uint32
	IndexFormat gpu.IndexFormat
	// Bounds is the world-space box of the object, precomputed from its transformed vertices.
	Bounds common.AABB
}

// Material holds the texture handles an object is shaded with.
type Material struct {
	Diffuse           gpu.TextureHandle
	Normal            gpu.TextureHandle
	MetallicRoughness gpu.TextureHandle
}

// Transform is the object-to-world matrix of an object.
type Transform struct {
	Model mgl32.Mat4
}

// Registry is a struct-of-arrays component store.
type Registry struct {
	meshes     []Mesh
	materials  []Material
	transforms []Transform
}

// New creates a registry with room for capacity objects.
func New(capacity int) *Registry {
	return &Registry{
		meshes:     make([]Mesh, 0, capacity),
		materials:  make([]Material, 0, capacity),
		transforms: make([]Transform, 0, capacity),
	}
}

// Add stores the components of a new object and returns its ID. IDs are dense and start at zero.
//
// Parameters:
//   - mesh: geometry and world-space bounds; the bounds must be Valid
//   - material: texture handles
//   - transform: model matrix
//
// Returns:
//   - common.ObjectID: the handle of the new object
func (r *Registry) Add(mesh Mesh, material Material, transform Transform) common.ObjectID {
	if !mesh.Bounds.Valid() {
		panic(fmt.Sprintf("registry: invalid bounds %v", mesh.Bounds))
	}
	id := common.ObjectID(len(r.meshes))
	r.meshes = append(r.meshes, mesh)
	r.materials = append(r.materials, material)
	r.transforms = append(r.transforms, transform)
	return id
}

// Len returns the number of objects.
func (r *Registry) Len() int { return len(r.meshes) }

func (r *Registry) check(id common.ObjectID) {
	if int(id) >= len(r.meshes) {
		panic(fmt.Sprintf("registry: unknown object %d (have %d)", id, len(r.meshes)))
	}
}

// Mesh returns the geometry of id. It panics for an ID the registry did not issue.
func (r *Registry) Mesh(id common.ObjectID) *Mesh {
	r.check(id)
	return &r.meshes[id]
}

// Material returns the textures of id. It panics for an ID the registry did not issue.
func (r *Registry) Material(id common.ObjectID) *Material {
	r.check(id)
	return &r.materials[id]
}

// Transform returns the model matrix of id. It panics for an ID the registry did not issue.
func (r *Registry) Transform(id common.ObjectID) *Transform {
	r.check(id)
	return &r.transforms[id]
}

// Bounds returns the union of every object's bounds, seeded from the first object.
func (r *Registry) Bounds() (common.AABB, error) {
	if len(r.meshes) == 0 {
		return common.AABB{}, ErrEmpty
	}
	b := r.meshes[0].Bounds
	for i := 1; i < len(r.meshes); i++ {
		b = b.Extend(r.meshes[i].Bounds)
	}
	return b, nil
}
