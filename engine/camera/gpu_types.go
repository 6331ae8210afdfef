package camera

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUFrameUniformSize is the size of the serialized GPUFrameUniform in bytes.
const GPUFrameUniformSize = 208

// GPUFrameUniform is the per-frame camera block bound by every pass.
// Layout (WGSL uniform aligned):
//
//	offset   0: view            mat4x4<f32>
//	offset  64: projection      mat4x4<f32>
//	offset 128: view_proj       mat4x4<f32>
//	offset 192: camera_position vec3<f32> + pad
type GPUFrameUniform struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProj       mgl32.Mat4
	CameraPosition mgl32.Vec3
}

// FrameUniformFrom captures the current matrices of c.
func FrameUniformFrom(c Camera) GPUFrameUniform {
	return GPUFrameUniform{
		View:           c.View(),
		Projection:     c.Projection(),
		ViewProj:       c.ViewProjection(),
		CameraPosition: c.Position(),
	}
}

// MarshalInto serializes the uniform into buf, which must hold at least GPUFrameUniformSize bytes.
//
// Parameters:
//   - buf: destination buffer
//
// Returns:
//   - []byte: buf truncated to GPUFrameUniformSize
func (g *GPUFrameUniform) MarshalInto(buf []byte) []byte {
	buf = buf[:GPUFrameUniformSize]
	off := common.PutMat4(buf, g.View)
	off += common.PutMat4(buf[off:], g.Projection)
	off += common.PutMat4(buf[off:], g.ViewProj)
	common.PutVec4(buf[off:], g.CameraPosition.Vec4(1))
	return buf
}
