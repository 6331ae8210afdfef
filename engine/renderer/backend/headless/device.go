// Package headless implements the gpu interfaces on the CPU with a simulated device timeline.
//
// Submissions are executed in order by a single device goroutine that honours semaphore waits,
// optionally sleeps to emulate GPU work, then signals semaphores and fences. Misuse that a real
// driver would only catch in validation layers is reported as an error: resetting or re-recording
// a stream that is still in flight, writing a uniform buffer an in-flight submission reads,
// submitting with a signaled fence and Begin on a stream that is already recording.
//
// Every submission is encoded into a stable byte form so tests can compare frames exactly.
package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/command"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/log"
)

// Submission is the host-visible record of one executed submission.
type Submission struct {
	// Seq is the zero-based submission order.
	Seq uint64
	// Commands is the stable encoding of the primary stream and its secondaries.
	Commands []byte
	// Draws is the number of draw commands across all secondaries.
	Draws int
	// Targets holds the target of each render pass in recording order.
	Targets []gpu.RenderTarget
	// Uniforms holds a copy of each frame uniform buffer bound by the submission.
	Uniforms [][]byte
}

type job struct {
	submit  *pendingSubmit
	present *pendingPresent
}

type pendingSubmit struct {
	seq     uint64
	stream  *PrimaryStream
	wait    *Semaphore
	signal  *Semaphore
	fence   *Fence
	uniform []*UniformBuffer
}

type pendingPresent struct {
	surface *Surface
	image   gpu.ImageIndex
	wait    *Semaphore
}

// Device is a deterministic CPU stand-in for a GPU device.
type Device struct {
	mu         sync.Mutex
	idle       *sync.Cond
	pending    int
	nextHandle uint32
	buffers    map[gpu.BufferHandle]int
	textures   map[gpu.TextureHandle][2]uint32
	shadowMaps map[gpu.TextureHandle]uint32
	pipelines  map[gpu.PipelineHandle]gpu.PipelineKind

	seq        uint64
	history    []Submission
	historyCap int
	failSubmit []error

	latency time.Duration
	jobs    chan job
	done    chan struct{}
	closed  bool
	logger  log.Logger
}

var _ gpu.Device = &Device{}

// NewDevice creates a device and starts its timeline goroutine.
//
// Parameters:
//   - opts: functional options (latency, history retention, logger)
//
// Returns:
//   - *Device: the running device; call Release to stop it
func NewDevice(opts ...DeviceBuilderOption) *Device {
	d := &Device{
		buffers:    make(map[gpu.BufferHandle]int),
		textures:   make(map[gpu.TextureHandle][2]uint32),
		shadowMaps: make(map[gpu.TextureHandle]uint32),
		pipelines:  make(map[gpu.PipelineHandle]gpu.PipelineKind),
		jobs:       make(chan job, 64),
		done:       make(chan struct{}),
		logger:     log.New("headless"),
	}
	d.idle = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

func (d *Device) handle() uint32 {
	d.nextHandle++
	return d.nextHandle
}

func (d *Device) CreateBuffer(label string, usage gpu.BufferUsage, data []byte) (gpu.BufferHandle, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("headless: buffer %q is empty", label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.BufferHandle(d.handle())
	d.buffers[h] = len(data)
	return h, nil
}

func (d *Device) CreateTexture(label string, width, height uint32, pixels []byte) (gpu.TextureHandle, error) {
	if uint32(len(pixels)) != width*height*4 {
		return 0, fmt.Errorf("headless: texture %q has %d bytes, want %d", label, len(pixels), width*height*4)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.TextureHandle(d.handle())
	d.textures[h] = [2]uint32{width, height}
	return h, nil
}

func (d *Device) CreateShadowMap(label string, size uint32) (gpu.TextureHandle, error) {
	if size == 0 {
		return 0, fmt.Errorf("headless: shadow map %q has zero size", label)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.TextureHandle(d.handle())
	d.shadowMaps[h] = size
	return h, nil
}

func (d *Device) CreatePipeline(label string, kind gpu.PipelineKind) (gpu.PipelineHandle, error) {
	switch kind {
	case gpu.PipelineOpaque, gpu.PipelineSkybox, gpu.PipelineShadow:
	default:
		return 0, fmt.Errorf("headless: pipeline %q has unknown kind %d", label, kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.PipelineHandle(d.handle())
	d.pipelines[h] = kind
	return h, nil
}

// BufferSize returns the size of a buffer created by CreateBuffer, or 0 if h is unknown.
func (d *Device) BufferSize(h gpu.BufferHandle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers[h]
}

func (d *Device) NewPrimaryStream(label string) (gpu.PrimaryStream, error) {
	return &PrimaryStream{label: label}, nil
}

func (d *Device) NewSecondaryStream(label string) (gpu.SecondaryStream, error) {
	return command.NewRecorder(label), nil
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	return newFence(signaled), nil
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	return newSemaphore(), nil
}

func (d *Device) NewUniformBuffer(label string, size uint64) (gpu.UniformBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("headless: uniform buffer %q has zero size", label)
	}
	return &UniformBuffer{label: label, data: make([]byte, size)}, nil
}

// FailNextSubmit makes the next Submit return err without executing anything.
func (d *Device) FailNextSubmit(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failSubmit = append(d.failSubmit, err)
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	stream, ok := info.Stream.(*PrimaryStream)
	if !ok {
		return errForeignObject
	}
	if !stream.ended {
		return errStreamNotEnded
	}
	wait, err := semaphoreOf(info.Wait)
	if err != nil {
		return err
	}
	signal, err := semaphoreOf(info.Signal)
	if err != nil {
		return err
	}
	var fence *Fence
	if info.Fence != nil {
		if fence, ok = info.Fence.(*Fence); !ok {
			return errForeignObject
		}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return gpu.ErrReleased
	}
	if len(d.failSubmit) > 0 {
		err := d.failSubmit[0]
		d.failSubmit = d.failSubmit[1:]
		d.mu.Unlock()
		return err
	}
	for _, rp := range stream.passes {
		if m := rp.target.ShadowMap; m != 0 {
			size, ok := d.shadowMaps[m]
			if !ok || rp.target.Extent.Width != size || rp.target.Extent.Height != size {
				d.mu.Unlock()
				return fmt.Errorf("headless: render pass targets shadow map %d at %v, which does not exist at that size", m, rp.target.Extent)
			}
		}
	}
	if fence != nil {
		if err := fence.arm(); err != nil {
			d.mu.Unlock()
			return err
		}
	}

	ps := &pendingSubmit{seq: d.seq, stream: stream, wait: wait, signal: signal, fence: fence}
	d.seq++
	d.pending++

	stream.inFlight.Add(1)
	stream.forEachSecondary(func(r *command.Recorder) {
		r.MarkInFlight()
		list := r.List()
		for _, c := range list.Commands() {
			if c.Op != command.OpBindFrameUniforms {
				continue
			}
			if u, ok := list.Uniform(c).(*UniformBuffer); ok {
				u.inFlight.Add(1)
				ps.uniform = append(ps.uniform, u)
			}
		}
	})

	if d.historyCap != 0 {
		sub := Submission{Seq: ps.seq, Commands: stream.Encode(nil), Draws: stream.draws()}
		for _, rp := range stream.passes {
			sub.Targets = append(sub.Targets, rp.target)
		}
		for _, u := range ps.uniform {
			sub.Uniforms = append(sub.Uniforms, u.Bytes())
		}
		d.history = append(d.history, sub)
		if d.historyCap > 0 && len(d.history) > d.historyCap {
			d.history = append(d.history[:0], d.history[len(d.history)-d.historyCap:]...)
		}
	}
	d.mu.Unlock()

	d.jobs <- job{submit: ps}
	return nil
}

func (d *Device) present(p *pendingPresent) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return gpu.ErrReleased
	}
	d.pending++
	d.mu.Unlock()
	d.jobs <- job{present: p}
	return nil
}

func semaphoreOf(s gpu.Semaphore) (*Semaphore, error) {
	if s == nil {
		return nil, nil
	}
	sem, ok := s.(*Semaphore)
	if !ok {
		return nil, errForeignObject
	}
	return sem, nil
}

func (d *Device) run() {
	defer close(d.done)
	for j := range d.jobs {
		switch {
		case j.submit != nil:
			d.execute(j.submit)
		case j.present != nil:
			if j.present.wait != nil {
				j.present.wait.wait()
			}
			if j.present.surface != nil {
				j.present.surface.presented(j.present.image)
			}
		}
		d.mu.Lock()
		d.pending--
		if d.pending == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}
}

func (d *Device) execute(ps *pendingSubmit) {
	if ps.wait != nil {
		ps.wait.wait()
	}
	if d.latency > 0 {
		time.Sleep(d.latency)
	}
	ps.stream.forEachSecondary(func(r *command.Recorder) { r.MarkComplete() })
	for _, u := range ps.uniform {
		u.inFlight.Add(-1)
	}
	ps.stream.inFlight.Add(-1)
	if ps.signal != nil {
		if err := ps.signal.signal(); err != nil {
			d.logger.Errorf("submission %d: %v", ps.seq, err)
		}
	}
	if ps.fence != nil {
		ps.fence.signal()
	}
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.idle.Wait()
	}
	return nil
}

// Submissions returns copies of the retained submission records, oldest first.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.history...)
}

// SubmitCount returns the total number of accepted submissions.
func (d *Device) SubmitCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Release waits for outstanding work and stops the timeline goroutine.
func (d *Device) Release() {
	_ = d.WaitIdle()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.jobs)
	<-d.done
}
