// Package renderer drives the frame loop: it waits for a free frame slot, acquires a surface image,
// records every pass in parallel into the slot's secondary streams, merges them in pass order into
// the primary stream, submits it and presents.
package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/log"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrTooManyRebuilds is returned when the surface stays stale for more consecutive acquisitions
	// than the configured limit.
	ErrTooManyRebuilds = errors.New("renderer: surface stale after repeated rebuilds")
	// ErrRecording wraps the joined pass errors of a frame that could not be recorded.
	ErrRecording = errors.New("renderer: recording failed")
	// ErrSubmit wraps a device submission failure.
	ErrSubmit = errors.New("renderer: submit failed")
)

// FrameView is the camera state a frame is drawn from.
type FrameView struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Position   mgl32.Vec3
}

// ViewFromCamera captures the current matrices of c.
func ViewFromCamera(c camera.Camera) FrameView {
	return FrameView{View: c.View(), Projection: c.Projection(), Position: c.Position()}
}

// FrameStats aggregates what the passes of one frame did.
type FrameStats struct {
	// Visit sums the traversal counters of every pass.
	Visit octree.VisitStats
	// Draws is the number of draws recorded across all passes.
	Draws int
	// Record is the wall time spent recording and merging the passes.
	Record time.Duration
	// Passes holds the counters of each pass, in declaration order.
	Passes []PassStats
}

// PassStats is what one pass recorded in a frame.
type PassStats struct {
	Name string
	pass.Stats
}

// FrameResult reports the outcome of DrawFrame.
type FrameResult struct {
	// Submitted is true when the frame's work reached the device.
	Submitted bool
	// Rebuilt is true when the surface was rebuilt during the call. When Submitted is false the
	// caller should retry the same frame number.
	Rebuilt bool
	Stats   FrameStats
}

// Renderer records and submits frames of a static scene.
type Renderer interface {
	// DrawFrame renders frame number frameNum from view. The slot used is frameNum modulo the
	// number of frames in flight; the caller owns the frame counter and must only advance it when
	// the result is Submitted.
	//
	// Parameters:
	//   - frameNum: the caller's loop-local frame counter
	//   - view: the camera matrices of the frame
	//
	// Returns:
	//   - FrameResult: whether the frame was submitted, whether the surface was rebuilt, and stats
	//   - error: a fatal error; ErrRecording, ErrSubmit or ErrTooManyRebuilds wrap the cause
	DrawFrame(frameNum uint64, view FrameView) (FrameResult, error)

	// WaitIdle blocks until no frame is in flight.
	WaitIdle() error

	// Close waits idle and releases every per-frame resource. The device and surface stay owned by
	// the caller.
	Close() error

	// FramesInFlight returns the number of frame slots.
	FramesInFlight() int

	// Surface returns the presentation surface.
	Surface() gpu.Surface
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	device  gpu.Device
	surface gpu.Surface
	scene   *scene.Scene
	logger  log.Logger

	passes         []pass.Pass
	framesInFlight int
	traversalCap   int
	surfaceSize    func() (uint32, uint32)
	rebuildHooks   []func(extent common.Extent2D)
	maxRebuilds    int

	ring *frame.Ring
	pool worker.DynamicWorkerPool

	// Per-frame scratch, only touched by DrawFrame.
	staleStreak int
	passErrs    []error
	secondaries []gpu.SecondaryStream
	targets     []gpu.RenderTarget
	uniform     [camera.GPUFrameUniformSize]byte
	closed      bool
}

var _ Renderer = &renderer{}

// NewRenderer allocates the frame ring on device and starts the recording worker pool.
// It panics if no pass is configured or the number of frames in flight is below one.
//
// Parameters:
//   - device: the device that records and executes frames
//   - surface: the presentation surface
//   - sc: the built scene
//   - options: functional options
//
// Returns:
//   - Renderer: the new renderer
//   - error: error if a frame resource could not be created
func NewRenderer(device gpu.Device, surface gpu.Surface, sc *scene.Scene, options ...RendererBuilderOption) (Renderer, error) {
	if device == nil || surface == nil || sc == nil {
		panic("renderer: device, surface and scene are required")
	}
	r := &renderer{
		device:         device,
		surface:        surface,
		scene:          sc,
		logger:         log.New("renderer"),
		framesInFlight: 3,
		traversalCap:   64,
		maxRebuilds:    8,
	}
	for _, opt := range options {
		opt(r)
	}
	if len(r.passes) == 0 {
		panic("renderer: at least one pass is required")
	}
	if r.framesInFlight < 1 {
		panic(fmt.Sprintf("renderer: invalid frames in flight %d", r.framesInFlight))
	}
	if r.surfaceSize == nil {
		r.surfaceSize = func() (uint32, uint32) {
			e := r.surface.Extent()
			return e.Width, e.Height
		}
	}

	ring, err := frame.NewRing(device, r.framesInFlight, len(r.passes),
		frame.WithUniformSize(camera.GPUFrameUniformSize),
		frame.WithTraversalCapacity(r.traversalCap),
	)
	if err != nil {
		return nil, fmt.Errorf("renderer: allocate frames: %w", err)
	}
	r.ring = ring
	r.pool = worker.NewDynamicWorkerPool(len(r.passes), 256, 1*time.Second)
	r.passErrs = make([]error, len(r.passes))
	r.secondaries = make([]gpu.SecondaryStream, 0, len(r.passes))
	r.targets = make([]gpu.RenderTarget, len(r.passes))

	names := make([]string, len(r.passes))
	for i, p := range r.passes {
		names[i] = p.Name()
	}
	r.logger.Infof("renderer ready: %d frames in flight, passes %v", r.framesInFlight, names)
	return r, nil
}

func (r *renderer) FramesInFlight() int { return r.framesInFlight }

func (r *renderer) Surface() gpu.Surface { return r.surface }

func (r *renderer) DrawFrame(frameNum uint64, view FrameView) (FrameResult, error) {
	if r.closed {
		return FrameResult{}, gpu.ErrReleased
	}
	slot := r.ring.Slot(frameNum)

	if err := slot.Fence.Wait(); err != nil {
		return FrameResult{}, fmt.Errorf("renderer: frame %d: wait fence: %w", frameNum, err)
	}
	if slot.State() == frame.Presented {
		slot.Transition(frame.Idle)
	}
	slot.Transition(frame.Recording)

	image, err := r.surface.Acquire(slot.ImageAcquired)
	switch {
	case errors.Is(err, gpu.ErrSurfaceStale):
		slot.Transition(frame.Idle)
		r.staleStreak++
		if r.staleStreak > r.maxRebuilds {
			return FrameResult{}, fmt.Errorf("%w: %d consecutive stale acquisitions", ErrTooManyRebuilds, r.staleStreak)
		}
		return r.rebuild(FrameResult{Rebuilt: true})
	case err != nil:
		slot.Transition(frame.Idle)
		return FrameResult{}, fmt.Errorf("renderer: frame %d: acquire: %w", frameNum, err)
	}
	r.staleStreak = 0
	slot.Image = image

	// The fence wait above guarantees the device is done with every slot resource.
	if err := slot.Reset(); err != nil {
		slot.Transition(frame.Idle)
		return FrameResult{}, fmt.Errorf("renderer: frame %d: %w", frameNum, err)
	}
	u := camera.GPUFrameUniform{
		View:           view.View,
		Projection:     view.Projection,
		ViewProj:       view.Projection.Mul4(view.View),
		CameraPosition: view.Position,
	}
	if err := slot.Uniforms.Write(u.MarshalInto(r.uniform[:])); err != nil {
		slot.Transition(frame.Idle)
		return FrameResult{}, fmt.Errorf("renderer: frame %d: write uniforms: %w", frameNum, err)
	}

	in := pass.Inputs{
		Frame:      frameNum,
		Target:     gpu.RenderTarget{Image: image, Extent: r.surface.Extent()},
		View:       view.View,
		Projection: view.Projection,
		Frustum:    common.ExtractFrustum(u.ViewProj),
		Octree:     r.scene.Octree,
		Registry:   r.scene.Registry,
		Uniforms:   slot.Uniforms,
	}
	start := time.Now()
	if err := r.record(slot, &in); err != nil {
		if rerr := slot.Primary.Reset(); rerr != nil {
			r.logger.Warningf("frame %d: reset after failed recording: %v", frameNum, rerr)
		}
		slot.Transition(frame.Idle)
		r.logger.Errorf("frame %d: %v", frameNum, err)
		return FrameResult{}, fmt.Errorf("%w: frame %d: %w", ErrRecording, frameNum, err)
	}
	res := FrameResult{Stats: r.collectStats(slot, time.Since(start))}

	if err := slot.Fence.Reset(); err != nil {
		if ferr := slot.RestoreFence(r.device); ferr != nil {
			r.logger.Warningf("frame %d: %v", frameNum, ferr)
		}
		slot.Transition(frame.Idle)
		return FrameResult{}, fmt.Errorf("%w: frame %d: reset fence: %w", ErrSubmit, frameNum, err)
	}
	err = r.device.Submit(gpu.SubmitInfo{
		Stream: slot.Primary,
		Wait:   slot.ImageAcquired,
		Signal: slot.RenderFinished,
		Fence:  slot.Fence,
	})
	if err != nil {
		if ferr := slot.RestoreFence(r.device); ferr != nil {
			r.logger.Warningf("frame %d: %v", frameNum, ferr)
		}
		slot.Transition(frame.Idle)
		r.logger.Errorf("frame %d: submit: %v", frameNum, err)
		return FrameResult{}, fmt.Errorf("%w: frame %d: %w", ErrSubmit, frameNum, err)
	}
	slot.Transition(frame.Submitted)
	res.Submitted = true

	err = r.surface.Present(image, slot.RenderFinished)
	slot.Transition(frame.Presented)
	switch {
	case errors.Is(err, gpu.ErrSurfaceStale):
		res.Rebuilt = true
		return r.rebuild(res)
	case err != nil:
		return res, fmt.Errorf("renderer: frame %d: present: %w", frameNum, err)
	}
	return res, nil
}

// rebuild waits for the device to drain, then rebuilds the surface at the current size and runs
// the rebuild hooks.
func (r *renderer) rebuild(res FrameResult) (FrameResult, error) {
	if err := r.device.WaitIdle(); err != nil {
		return res, fmt.Errorf("renderer: rebuild: wait idle: %w", err)
	}
	width, height := r.surfaceSize()
	if err := r.surface.Rebuild(width, height); err != nil {
		return res, fmt.Errorf("renderer: rebuild surface %dx%d: %w", width, height, err)
	}
	extent := r.surface.Extent()
	for _, hook := range r.rebuildHooks {
		hook(extent)
	}
	r.logger.Infof("surface rebuilt at %v", extent)
	return res, nil
}

func (r *renderer) collectStats(slot *frame.Slot, elapsed time.Duration) FrameStats {
	st := FrameStats{Record: elapsed, Passes: make([]PassStats, len(slot.Workers))}
	for i := range slot.Workers {
		st.Passes[i] = PassStats{Name: r.passes[i].Name(), Stats: slot.Workers[i].Stats}
		st.Visit.Add(slot.Workers[i].Stats.Visited)
		st.Draws += slot.Workers[i].Stats.Draws
	}
	return st
}

// WaitIdle waits on every slot fence and then drains the device, even when a fence wait failed.
func (r *renderer) WaitIdle() error {
	if r.closed {
		return nil
	}
	var errs []error
	if err := r.ring.WaitIdle(); err != nil {
		errs = append(errs, fmt.Errorf("renderer: %w", err))
	}
	if err := r.device.WaitIdle(); err != nil {
		errs = append(errs, fmt.Errorf("renderer: wait idle: %w", err))
	}
	return errors.Join(errs...)
}

func (r *renderer) Close() error {
	if r.closed {
		return nil
	}
	err := r.WaitIdle()
	r.ring.Release()
	r.closed = true
	r.logger.Info("renderer closed")
	return err
}
