package gpu

import "github.com/Carmen-Shannon/oxy-cull/common"

// Allocator creates the immutable resources a scene refers to by handle.
type Allocator interface {
	// CreateBuffer uploads data into a new buffer bound with the given usage.
	CreateBuffer(label string, usage BufferUsage, data []byte) (BufferHandle, error)
	// CreateTexture uploads tightly packed RGBA8 pixels into a new sampled texture.
	CreateTexture(label string, width, height uint32, pixels []byte) (TextureHandle, error)
	// CreateShadowMap creates a square depth texture that a shadow pass renders into and the
	// opaque pipeline samples with depth comparison.
	CreateShadowMap(label string, size uint32) (TextureHandle, error)
	// CreatePipeline builds one of the backend's known pipelines.
	CreatePipeline(label string, kind PipelineKind) (PipelineHandle, error)
}

// Device creates command streams and synchronization objects and submits work to its queue.
type Device interface {
	Allocator

	NewPrimaryStream(label string) (PrimaryStream, error)
	NewSecondaryStream(label string) (SecondaryStream, error)
	// NewFence creates a fence. Frame fences are created signaled so the first wait passes.
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	// NewUniformBuffer creates a host-writable uniform buffer of size bytes.
	NewUniformBuffer(label string, size uint64) (UniformBuffer, error)

	// Submit queues the stream for execution. The stream must have been ended.
	Submit(info SubmitInfo) error
	// WaitIdle blocks until every submitted stream has completed.
	WaitIdle() error
	Release()
}

// PrimaryStream is a top-level command stream holding one render pass that executes secondaries.
type PrimaryStream interface {
	Begin() error
	BeginRenderPass(target RenderTarget)
	// ExecuteSecondary appends the given ended secondary streams, in order, to the current pass.
	ExecuteSecondary(streams ...SecondaryStream)
	EndRenderPass()
	// End finishes recording and returns the first error recorded since Begin.
	End() error
	// Reset clears the stream for re-recording. It fails with ErrStreamInFlight if a submission
	// that references the stream has not completed.
	Reset() error
	Release()
}

// SecondaryStream records draw commands for one pass. Instances are confined to one goroutine
// between Begin and End.
type SecondaryStream interface {
	// Begin starts recording commands that inherit the attachments of target.
	Begin(target RenderTarget) error
	SetViewport(vp Viewport)
	BindPipeline(p PipelineHandle)
	// BindFrameUniforms binds the per-frame uniform block (camera matrices).
	BindFrameUniforms(u UniformBuffer)
	// BindTexture binds a sampled texture to a material slot of the bound pipeline.
	BindTexture(slot uint32, t TextureHandle)
	BindVertexBuffer(b BufferHandle)
	BindIndexBuffer(b BufferHandle, format IndexFormat)
	// PushParams sets the per-draw parameter block read by the next draws.
	PushParams(data []byte)
	DrawIndexed(indexCount, instanceCount uint32)
	// End finishes recording and returns the first error recorded since Begin.
	End() error
	Reset() error
	Release()
}

// Fence is signaled by the device when a submission completes. The host waits on it.
type Fence interface {
	// Wait blocks until the fence is signaled. It returns immediately for a signaled fence.
	Wait() error
	// Reset returns the fence to the unsignaled state.
	Reset() error
	Signaled() bool
	Release()
}

// Semaphore orders work on the device timeline. It is never waited on by the host.
type Semaphore interface {
	Release()
}

// UniformBuffer is a host-writable buffer bound as a uniform block.
type UniformBuffer interface {
	Write(data []byte) error
	Size() uint64
	Release()
}

// Surface is the presentable swap chain of a window.
type Surface interface {
	// Acquire returns the next image to render into and arranges for signal to be signaled when
	// the image is ready. It returns ErrSurfaceStale if the surface must be rebuilt.
	Acquire(signal Semaphore) (ImageIndex, error)
	// Present queues image for presentation once wait is signaled.
	Present(image ImageIndex, wait Semaphore) error
	// Rebuild recreates the swap chain at the given size.
	Rebuild(width, height uint32) error
	Extent() common.Extent2D
	ImageCount() int
	Release()
}
