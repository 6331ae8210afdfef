// Package gpu declares the narrow set of GPU primitives the renderer core depends on:
// command streams, synchronization objects, a presentable surface and opaque resource handles.
//
// The core never sees a concrete API. Backends (see renderer/backend) implement these interfaces
// for a real device or for a deterministic CPU timeline used in tests and benchmarks.
package gpu

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-cull/common"
)

var (
	// ErrSurfaceStale is returned by Surface.Acquire and Surface.Present when the surface no longer
	// matches the window (resize, minimise, display change) and must be rebuilt.
	ErrSurfaceStale = errors.New("gpu: surface is stale")
	// ErrStreamInFlight is returned when a stream is reset or re-recorded while a submission that
	// references it has not completed.
	ErrStreamInFlight = errors.New("gpu: stream is referenced by an in-flight submission")
	// ErrBufferInFlight is returned when a host write targets a buffer an in-flight submission reads.
	ErrBufferInFlight = errors.New("gpu: buffer is referenced by an in-flight submission")
	// ErrConcurrentRecording is returned when a stream is started while it is already recording.
	ErrConcurrentRecording = errors.New("gpu: stream is already recording")
	// ErrNotRecording is returned when a command is recorded outside Begin/End.
	ErrNotRecording = errors.New("gpu: stream is not recording")
	// ErrReleased is returned when a released object is used.
	ErrReleased = errors.New("gpu: object has been released")
)

// BufferHandle identifies a GPU buffer created through an Allocator. Zero is never a valid handle.
type BufferHandle uint32

// TextureHandle identifies a sampled texture. Zero means "no texture".
type TextureHandle uint32

// PipelineHandle identifies a graphics pipeline. Zero is never a valid handle.
type PipelineHandle uint32

// ImageIndex identifies one image of the presentable surface.
type ImageIndex uint32

// IndexFormat is the element width of an index buffer.
type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota + 1
	IndexFormatUint32
)

// Size returns the width of one index in bytes.
func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}

// BufferUsage selects how a buffer created through an Allocator is bound.
type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = iota + 1
	BufferUsageIndex
)

// PipelineKind selects one of the pipelines a backend knows how to build.
type PipelineKind uint8

const (
	// PipelineOpaque is the lit, depth-tested mesh pipeline.
	PipelineOpaque PipelineKind = iota + 1
	// PipelineSkybox draws a cube around the camera at maximum depth.
	PipelineSkybox
	// PipelineShadow writes depth only, from the light's point of view, into a shadow map.
	PipelineShadow
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineOpaque:
		return "opaque"
	case PipelineSkybox:
		return "skybox"
	case PipelineShadow:
		return "shadow"
	}
	return "unknown"
}

// Viewport is the rectangle and depth range a secondary stream renders into.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// FullViewport covers the whole extent with the [0, 1] depth range.
func FullViewport(extent common.Extent2D) Viewport {
	return Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1}
}

// Texture slots understood by BindTexture.
const (
	// TextureSlotDiffuse is the material color texture.
	TextureSlotDiffuse uint32 = 0
	// TextureSlotShadow is the shadow map sampled by the opaque pipeline.
	TextureSlotShadow uint32 = 1
)

// RenderTarget describes the attachment set a render pass and its secondary streams draw into.
// A target with a ShadowMap renders depth only into that map; otherwise it renders into the
// acquired surface image.
type RenderTarget struct {
	Image     ImageIndex
	Extent    common.Extent2D
	ShadowMap TextureHandle
}

// SubmitInfo is one queue submission: the stream to execute, the semaphore to wait on before
// execution, the semaphore to signal after it and the fence to signal on completion.
type SubmitInfo struct {
	Stream PrimaryStream
	Wait   Semaphore
	Signal Semaphore
	Fence  Fence
}
