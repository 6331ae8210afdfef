package command

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
)

var (
	errNoPipeline    = errors.New("command: draw without a bound pipeline")
	errNoIndexBuffer = errors.New("command: draw without a bound index buffer")
	errNoViewport    = errors.New("command: draw without a viewport")
)

// Recorder is a gpu.SecondaryStream that records into a List. Backends hand out Recorders as their
// secondary streams and replay them when the owning primary stream is submitted.
//
// A Recorder detects misuse instead of corrupting its list: a Begin while already recording
// reports gpu.ErrConcurrentRecording and a Begin or Reset while a submission still references the
// recorder reports gpu.ErrStreamInFlight.
type Recorder struct {
	label string
	list  List

	recording atomic.Bool
	inFlight  atomic.Int32
	released  bool

	target      gpu.RenderTarget
	err         error
	hasPipeline bool
	hasIndex    bool
	hasViewport bool
}

var _ gpu.SecondaryStream = &Recorder{}

// NewRecorder creates an empty recorder.
func NewRecorder(label string) *Recorder {
	return &Recorder{label: label}
}

// Label returns the debug label given at creation.
func (r *Recorder) Label() string { return r.label }

// List returns the recorded commands. It must not be read while the recorder is recording.
func (r *Recorder) List() *List { return &r.list }

// Target returns the render target given to the last Begin.
func (r *Recorder) Target() gpu.RenderTarget { return r.target }

// Recording reports whether the recorder is between Begin and End.
func (r *Recorder) Recording() bool { return r.recording.Load() }

// MarkInFlight records that a submission now references the recorder.
func (r *Recorder) MarkInFlight() { r.inFlight.Add(1) }

// MarkComplete records that a submission referencing the recorder has completed.
func (r *Recorder) MarkComplete() { r.inFlight.Add(-1) }

// InFlight reports whether any submission referencing the recorder is still pending.
func (r *Recorder) InFlight() bool { return r.inFlight.Load() > 0 }

func (r *Recorder) Begin(target gpu.RenderTarget) error {
	if r.released {
		return gpu.ErrReleased
	}
	if r.InFlight() {
		return fmt.Errorf("%s: begin: %w", r.label, gpu.ErrStreamInFlight)
	}
	if !r.recording.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: begin: %w", r.label, gpu.ErrConcurrentRecording)
	}
	r.list.Reset()
	r.target = target
	r.err = nil
	r.hasPipeline, r.hasIndex, r.hasViewport = false, false, false
	return nil
}

func (r *Recorder) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", r.label, err)
	}
}

func (r *Recorder) check() bool {
	if !r.recording.Load() {
		r.fail(gpu.ErrNotRecording)
		return false
	}
	return true
}

func (r *Recorder) SetViewport(vp gpu.Viewport) {
	if r.check() {
		r.list.setViewport(vp)
		r.hasViewport = true
	}
}

func (r *Recorder) BindPipeline(p gpu.PipelineHandle) {
	if r.check() {
		r.list.bindPipeline(p)
		r.hasPipeline = p != 0
	}
}

func (r *Recorder) BindFrameUniforms(u gpu.UniformBuffer) {
	if r.check() {
		r.list.bindFrameUniforms(u)
	}
}

func (r *Recorder) BindTexture(slot uint32, t gpu.TextureHandle) {
	if r.check() {
		r.list.bindTexture(slot, t)
	}
}

func (r *Recorder) BindVertexBuffer(b gpu.BufferHandle) {
	if r.check() {
		r.list.bindVertexBuffer(b)
	}
}

func (r *Recorder) BindIndexBuffer(b gpu.BufferHandle, format gpu.IndexFormat) {
	if r.check() {
		r.list.bindIndexBuffer(b, format)
		r.hasIndex = b != 0
	}
}

func (r *Recorder) PushParams(data []byte) {
	if r.check() {
		r.list.pushParams(data)
	}
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount uint32) {
	if !r.check() {
		return
	}
	switch {
	case !r.hasPipeline:
		r.fail(errNoPipeline)
	case !r.hasIndex:
		r.fail(errNoIndexBuffer)
	case !r.hasViewport:
		r.fail(errNoViewport)
	default:
		r.list.drawIndexed(indexCount, instanceCount)
	}
}

func (r *Recorder) End() error {
	if !r.recording.CompareAndSwap(true, false) {
		return fmt.Errorf("%s: end: %w", r.label, gpu.ErrNotRecording)
	}
	return r.err
}

func (r *Recorder) Reset() error {
	if r.InFlight() {
		return fmt.Errorf("%s: reset: %w", r.label, gpu.ErrStreamInFlight)
	}
	if r.recording.Load() {
		return fmt.Errorf("%s: reset: %w", r.label, gpu.ErrConcurrentRecording)
	}
	r.list.Reset()
	r.err = nil
	return nil
}

func (r *Recorder) Release() {
	r.list = List{}
	r.released = true
}
