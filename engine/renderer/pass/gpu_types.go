package pass

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUPBRParamsSize is the size of a serialized GPUPBRParams in bytes.
const GPUPBRParamsSize = 160

// GPUPBRParams is the per-draw parameter block of the opaque pass.
// Layout:
//
//	offset  0: model              mat4x4<f32>
//	offset 64: light              vec4<f32> (xyz direction towards the light, w intensity)
//	offset 80: diffuse            u32
//	offset 84: normal             u32
//	offset 88: metallic_roughness u32
//	offset 92: shadow             u32 (zero when no shadow map is bound)
//	offset 96: light_view_proj    mat4x4<f32>
type GPUPBRParams struct {
	Model             mgl32.Mat4
	Light             mgl32.Vec4
	Diffuse           gpu.TextureHandle
	Normal            gpu.TextureHandle
	MetallicRoughness gpu.TextureHandle
	Shadow            gpu.TextureHandle
	LightViewProj     mgl32.Mat4
}

// MarshalInto serializes the block into buf, which must hold at least GPUPBRParamsSize bytes.
func (p *GPUPBRParams) MarshalInto(buf []byte) []byte {
	buf = buf[:GPUPBRParamsSize]
	off := common.PutMat4(buf, p.Model)
	off += common.PutVec4(buf[off:], p.Light)
	off += common.PutUint32(buf[off:], uint32(p.Diffuse))
	off += common.PutUint32(buf[off:], uint32(p.Normal))
	off += common.PutUint32(buf[off:], uint32(p.MetallicRoughness))
	off += common.PutUint32(buf[off:], uint32(p.Shadow))
	common.PutMat4(buf[off:], p.LightViewProj)
	return buf
}

// GPUSkyboxParamsSize is the size of a serialized GPUSkyboxParams in bytes.
const GPUSkyboxParamsSize = 144

// GPUSkyboxParams is the parameter block of the skybox pass.
// Layout:
//
//	offset   0: projection mat4x4<f32>
//	offset  64: view       mat4x4<f32> (translation removed)
//	offset 128: skybox     u32 + 12 bytes pad
type GPUSkyboxParams struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
	Skybox     gpu.TextureHandle
}

// MarshalInto serializes the block into buf, which must hold at least GPUSkyboxParamsSize bytes.
func (p *GPUSkyboxParams) MarshalInto(buf []byte) []byte {
	buf = buf[:GPUSkyboxParamsSize]
	clear(buf)
	off := common.PutMat4(buf, p.Projection)
	off += common.PutMat4(buf[off:], p.View)
	common.PutUint32(buf[off:], uint32(p.Skybox))
	return buf
}

// GPUShadowParamsSize is the size of a serialized GPUShadowParams in bytes.
const GPUShadowParamsSize = 128

// GPUShadowParams is the per-draw parameter block of the shadow pass.
// Layout:
//
//	offset  0: model           mat4x4<f32>
//	offset 64: light_view_proj mat4x4<f32>
type GPUShadowParams struct {
	Model         mgl32.Mat4
	LightViewProj mgl32.Mat4
}

// MarshalInto serializes the block into buf, which must hold at least GPUShadowParamsSize bytes.
func (p *GPUShadowParams) MarshalInto(buf []byte) []byte {
	buf = buf[:GPUShadowParamsSize]
	off := common.PutMat4(buf, p.Model)
	common.PutMat4(buf[off:], p.LightViewProj)
	return buf
}

// MaxParamsSize is the largest parameter block any pass pushes. Backends size their per-draw
// parameter storage from it.
const MaxParamsSize = GPUPBRParamsSize
