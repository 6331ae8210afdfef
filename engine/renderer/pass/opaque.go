package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// OpaquePass draws every object of every octree node that survives frustum culling.
type OpaquePass struct {
	pipeline      gpu.PipelineHandle
	light         mgl32.Vec4
	shadow        gpu.TextureHandle
	lightViewProj mgl32.Mat4
}

var _ Pass = &OpaquePass{}

// NewOpaquePass creates the main scene pass.
//
// Parameters:
//   - pipeline: an opaque pipeline created by the device's allocator
//   - options: functional options (light, shadow map)
//
// Returns:
//   - *OpaquePass: the pass
func NewOpaquePass(pipeline gpu.PipelineHandle, options ...OpaquePassOption) *OpaquePass {
	if pipeline == 0 {
		panic("pass: opaque pass needs a pipeline")
	}
	p := &OpaquePass{
		pipeline: pipeline,
		light:    mgl32.Vec3{0.4, 1, 0.3}.Normalize().Vec4(1),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *OpaquePass) Name() string { return "opaque" }

// Record traverses the octree with the frame frustum and, for each visible object in traversal
// order, pushes its parameter block, binds its geometry and issues one indexed draw. Texture and
// buffer binds are only recorded when they change from the previous draw.
func (p *OpaquePass) Record(in *Inputs, out Output) error {
	s := out.Stream
	if err := s.Begin(in.Target); err != nil {
		return err
	}
	s.SetViewport(gpu.FullViewport(in.Target.Extent))
	s.BindPipeline(p.pipeline)
	s.BindFrameUniforms(in.Uniforms)
	if p.shadow != 0 {
		s.BindTexture(gpu.TextureSlotShadow, p.shadow)
	}

	var (
		buf      [GPUPBRParamsSize]byte
		diffuse  gpu.TextureHandle
		vertices gpu.BufferHandle
		indices  gpu.BufferHandle
		draws    int
	)
	visited := out.Traversal.Visit(in.Octree, in.Frustum, func(id common.ObjectID) {
		mesh := in.Registry.Mesh(id)
		material := in.Registry.Material(id)

		if material.Diffuse != diffuse {
			s.BindTexture(gpu.TextureSlotDiffuse, material.Diffuse)
			diffuse = material.Diffuse
		}
		params := GPUPBRParams{
			Model:             in.Registry.Transform(id).Model,
			Light:             p.light,
			Diffuse:           material.Diffuse,
			Normal:            material.Normal,
			MetallicRoughness: material.MetallicRoughness,
			Shadow:            p.shadow,
			LightViewProj:     p.lightViewProj,
		}
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
		return fmt.Errorf("opaque: %w", err)
	}
	return nil
}

// OpaquePassOption is a functional option for configuring an OpaquePass.
type OpaquePassOption func(p *OpaquePass)

// WithLight sets the directional light passed to every draw.
//
// Parameters:
//   - direction: world-space direction towards the light; normalised internally
//   - intensity: light intensity multiplier
//
// Returns:
//   - OpaquePassOption: option function to apply
func WithLight(direction mgl32.Vec3, intensity float32) OpaquePassOption {
	return func(p *OpaquePass) {
		if direction.Len() > 0 {
			direction = direction.Normalize()
		}
		p.light = direction.Vec4(intensity)
	}
}

// WithShadowMap samples the shadow map a ShadowPass renders earlier in the frame. Zero disables
// shadowing.
//
// Parameters:
//   - t: the shadow map created by the allocator
//   - lightViewProj: the light view-projection the shadow pass renders with
//
// Returns:
//   - OpaquePassOption: option function to apply
func WithShadowMap(t gpu.TextureHandle, lightViewProj mgl32.Mat4) OpaquePassOption {
	return func(p *OpaquePass) {
		p.shadow = t
		p.lightViewProj = lightViewProj
	}
}
