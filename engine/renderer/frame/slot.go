package frame

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pass"
)

// Worker is the per-pass scratch of a slot. During recording it is touched only by the task
// running its pass.
type Worker struct {
	Stream    gpu.SecondaryStream
	Traversal *octree.Traversal
	Stats     pass.Stats
}

// Output returns the worker as the exclusive output of a pass.
func (w *Worker) Output() pass.Output {
	return pass.Output{Stream: w.Stream, Traversal: w.Traversal, Stats: &w.Stats}
}

// Slot holds every resource one frame in flight needs. Slots are allocated once by NewRing and
// reused; only the renderer's frame loop mutates them.
type Slot struct {
	Index          int
	Primary        gpu.PrimaryStream
	Workers        []Worker
	Fence          gpu.Fence
	ImageAcquired  gpu.Semaphore
	RenderFinished gpu.Semaphore
	Uniforms       gpu.UniformBuffer

	// Image is the surface image acquired for the frame being recorded.
	Image gpu.ImageIndex

	state State
}

// State returns the current lifecycle state.
func (s *Slot) State() State { return s.state }

// Transition moves the slot to state to.
// It panics when the transition is not legal, which indicates a broken frame loop.
func (s *Slot) Transition(to State) {
	if !s.state.CanTransition(to) {
		panic(fmt.Sprintf("frame: slot %d: illegal transition %s -> %s", s.Index, s.state, to))
	}
	s.state = to
}

// Reset clears the primary stream and every worker stream and zeroes the worker stats.
// The caller must have waited on Fence first; a stream still referenced by the device fails with
// gpu.ErrStreamInFlight.
//
// Returns:
//   - error: every reset failure, joined
func (s *Slot) Reset() error {
	var errs []error
	if err := s.Primary.Reset(); err != nil {
		errs = append(errs, fmt.Errorf("primary: %w", err))
	}
	for i := range s.Workers {
		w := &s.Workers[i]
		if err := w.Stream.Reset(); err != nil {
			errs = append(errs, fmt.Errorf("worker %d: %w", i, err))
		}
		w.Stats.Reset()
	}
	if len(errs) > 0 {
		return fmt.Errorf("frame: slot %d: reset: %w", s.Index, errors.Join(errs...))
	}
	return nil
}

// RestoreFence replaces a fence that was reset but never submitted with a new signaled one, so the
// next wait on the slot passes again.
func (s *Slot) RestoreFence(device gpu.Device) error {
	if s.Fence.Signaled() {
		return nil
	}
	f, err := device.NewFence(true)
	if err != nil {
		return fmt.Errorf("frame: slot %d: restore fence: %w", s.Index, err)
	}
	s.Fence.Release()
	s.Fence = f
	return nil
}

// Secondaries returns the worker streams in worker order.
func (s *Slot) Secondaries(dst []gpu.SecondaryStream) []gpu.SecondaryStream {
	for i := range s.Workers {
		dst = append(dst, s.Workers[i].Stream)
	}
	return dst
}

func (s *Slot) release() {
	for i := range s.Workers {
		if s.Workers[i].Stream != nil {
			s.Workers[i].Stream.Release()
		}
	}
	for _, r := range []interface{ Release() }{s.Primary, s.Fence, s.ImageAcquired, s.RenderFinished, s.Uniforms} {
		if r != nil {
			r.Release()
		}
	}
}
