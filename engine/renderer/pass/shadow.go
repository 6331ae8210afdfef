package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowPass renders the depth of every object a directional light sees into a shadow map. It
// culls the octree with the light's frustum, so objects outside the camera view still cast
// shadows into it.
type ShadowPass struct {
	pipeline gpu.PipelineHandle
	target   gpu.RenderTarget
	viewProj mgl32.Mat4
	frustum  common.Frustum
}

var (
	_ Pass     = &ShadowPass{}
	_ Targeted = &ShadowPass{}
)

// NewShadowPass creates the depth-only light pass. Declare it before the passes that sample the
// map so its render pass is recorded first.
//
// Parameters:
//   - pipeline: a shadow pipeline created by the device's allocator
//   - shadowMap: the map created by CreateShadowMap
//   - size: the width and height of the map in texels
//   - lightViewProj: the light view-projection, see FitDirectionalLight
//
// Returns:
//   - *ShadowPass: the pass
func NewShadowPass(pipeline gpu.PipelineHandle, shadowMap gpu.TextureHandle, size uint32, lightViewProj mgl32.Mat4) *ShadowPass {
	if pipeline == 0 || shadowMap == 0 || size == 0 {
		panic("pass: shadow pass needs a pipeline and a shadow map")
	}
	return &ShadowPass{
		pipeline: pipeline,
		target: gpu.RenderTarget{
			Extent:    common.Extent2D{Width: size, Height: size},
			ShadowMap: shadowMap,
		},
		viewProj: lightViewProj,
		frustum:  common.ExtractFrustum(lightViewProj),
	}
}

func (p *ShadowPass) Name() string { return "shadow" }

// Target returns the shadow map target.
func (p *ShadowPass) Target() gpu.RenderTarget { return p.target }

// Record draws every object in the light frustum with the light view-projection.
func (p *ShadowPass) Record(in *Inputs, out Output) error {
	s := out.Stream
	if err := s.Begin(p.target); err != nil {
		return err
	}
	s.SetViewport(gpu.FullViewport(p.target.Extent))
	s.BindPipeline(p.pipeline)
	s.BindFrameUniforms(in.Uniforms)

	var (
		buf      [GPUShadowParamsSize]byte
		vertices gpu.BufferHandle
		indices  gpu.BufferHandle
		draws    int
	)
	visited := out.Traversal.Visit(in.Octree, p.frustum, func(id common.ObjectID) {
		mesh := in.Registry.Mesh(id)
		params := GPUShadowParams{Model: in.Registry.Transform(id).Model, LightViewProj: p.viewProj}
		s.PushParams(params.MarshalInto(buf[:]))
		if mesh.VertexBuffer != vertices {
			s.BindVertexBuffer(mesh.VertexBuffer)
			vertices = mesh.VertexBuffer
		}
		if mesh.IndexBuffer != indices {
			s.BindIndexBuffer(mesh.IndexBuffer, mesh.IndexFormat)
			indices = mesh.IndexBuffer
		}
		s.DrawIndexed(mesh.IndexCount, 1)
		draws++
	})

	out.Stats.Visited = visited
	out.Stats.Draws = draws
	if err := s.End(); err != nil {
		return fmt.Errorf("shadow: %w", err)
	}
	return nil
}

// FitDirectionalLight returns an orthographic view-projection that looks at bounds from
// direction and encloses the sphere around it, so every object in bounds lands in the map.
//
// Parameters:
//   - bounds: the world-space box to cover, usually the scene bounds
//   - direction: world-space direction towards the light
//
// Returns:
//   - mgl32.Mat4: projection * view with OpenGL clip conventions
func FitDirectionalLight(bounds common.AABB, direction mgl32.Vec3) mgl32.Mat4 {
	center := bounds.Center()
	radius := bounds.Size().Len() * 0.5
	if radius <= 0 || math32.IsNaN(radius) {
		radius = 1
	}
	if direction.Len() == 0 {
		direction = mgl32.Vec3{0, 1, 0}
	}
	direction = direction.Normalize()

	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(direction.Y()) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}
	eye := center.Add(direction.Mul(2 * radius))
	view := mgl32.LookAtV(eye, center, up)
	proj := mgl32.Ortho(-radius, radius, -radius, radius, 0.5*radius, 3.5*radius)
	return proj.Mul4(view)
}
