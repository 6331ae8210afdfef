package wgpubackend

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Fence completes when the queue has executed the submission that armed it. Submissions on the
// queue complete in order, so reaching an index completes every fence armed at or before it.
type Fence struct {
	device *Device

	mu       sync.Mutex
	signaled bool
	pending  bool
	index    wgpu.SubmissionIndex
	stream   *PrimaryStream
	uniforms []*UniformBuffer
}

var _ gpu.Fence = &Fence{}

// arm marks the fence pending on the submission at index, which references stream and uniforms.
// The device lock is held.
func (f *Fence) arm(index wgpu.SubmissionIndex, stream *PrimaryStream, uniforms []*UniformBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = true
	f.index = index
	f.stream = stream
	f.uniforms = append(f.uniforms[:0], uniforms...)
}

// complete releases the submission's references and signals the fence. The device lock is held.
func (f *Fence) complete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		return
	}
	f.stream.inFlight.Store(false)
	f.stream.forEachSecondary((*command.Recorder).MarkComplete)
	for _, u := range f.uniforms {
		u.inFlight--
	}
	f.stream, f.uniforms = nil, f.uniforms[:0]
	f.pending, f.signaled = false, true
}

func (f *Fence) Wait() error {
	f.mu.Lock()
	signaled, pending, index := f.signaled, f.pending, f.index
	f.mu.Unlock()
	if signaled {
		return nil
	}
	if !pending {
		return errFenceIdle
	}
	f.device.waitFor(index)
	return nil
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return errFencePending
	}
	f.signaled = false
	return nil
}

// Signaled polls the device without blocking and reports whether the fence has completed.
func (f *Fence) Signaled() bool {
	f.mu.Lock()
	pending := f.pending
	f.mu.Unlock()
	if pending {
		f.device.poll(false)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *Fence) Release() {}

// Semaphore is a placeholder: the WebGPU queue already orders acquire, submit and present.
type Semaphore struct{}

var _ gpu.Semaphore = &Semaphore{}

func (s *Semaphore) Release() {}
