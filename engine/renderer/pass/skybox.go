package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// SkyboxMesh is the cube the skybox pass draws around the camera.
type SkyboxMesh struct {
	VertexBuffer gpu.BufferHandle
	IndexBuffer  gpu.BufferHandle
	IndexCount   uint32
	IndexFormat  gpu.IndexFormat
}

// SkyboxPass draws the environment behind the scene. It does not depend on the octree.
type SkyboxPass struct {
	pipeline gpu.PipelineHandle
	mesh     SkyboxMesh
	texture  gpu.TextureHandle
}

var _ Pass = &SkyboxPass{}

// NewSkyboxPass creates the auxiliary environment pass.
//
// Parameters:
//   - pipeline: a skybox pipeline created by the device's allocator
//   - mesh: the cube geometry
//   - texture: the environment texture
//
// Returns:
//   - *SkyboxPass: the pass
func NewSkyboxPass(pipeline gpu.PipelineHandle, mesh SkyboxMesh, texture gpu.TextureHandle) *SkyboxPass {
	if pipeline == 0 || mesh.IndexBuffer == 0 {
		panic("pass: skybox pass needs a pipeline and a mesh")
	}
	return &SkyboxPass{pipeline: pipeline, mesh: mesh, texture: texture}
}

func (p *SkyboxPass) Name() string { return "skybox" }

// Record draws the cube once with the view matrix stripped of its translation.
func (p *SkyboxPass) Record(in *Inputs, out Output) error {
	s := out.Stream
	if err := s.Begin(in.Target); err != nil {
		return err
	}
	s.SetViewport(gpu.FullViewport(in.Target.Extent))
	s.BindPipeline(p.pipeline)
	s.BindTexture(gpu.TextureSlotDiffuse, p.texture)

	view := in.View
	view.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	params := GPUSkyboxParams{Projection: in.Projection, View: view, Skybox: p.texture}
	var buf [GPUSkyboxParamsSize]byte
	s.PushParams(params.MarshalInto(buf[:]))

	s.BindVertexBuffer(p.mesh.VertexBuffer)
	s.BindIndexBuffer(p.mesh.IndexBuffer, p.mesh.IndexFormat)
	s.DrawIndexed(p.mesh.IndexCount, 1)

	out.Stats.Reset()
	out.Stats.Draws = 1
	if err := s.End(); err != nil {
		return fmt.Errorf("skybox: %w", err)
	}
	return nil
}
