// Package frame owns the per-frame resources of the renderer: a fixed ring of slots, each with its
// own command streams, synchronisation primitives and uniform storage.
package frame

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/gpu"
)

// Ring is the fixed set of frame slots. The slot of frame f is f % Len().
type Ring struct {
	slots []*Slot
}

type ringConfig struct {
	uniformSize  uint64
	traversalCap int
	labelPrefix  string
}

// NewRing allocates n slots, each with a primary stream, one worker per pass, a fence created
// signaled, two semaphores and a frame uniform buffer.
// It panics if n or workers is less than one.
//
// Parameters:
//   - device: the device that creates every resource
//   - n: number of frames in flight
//   - workers: number of passes recorded per frame
//   - opts: functional options
//
// Returns:
//   - *Ring: the allocated ring
//   - error: the first allocation failure; already created resources are released
func NewRing(device gpu.Device, n, workers int, opts ...RingBuilderOption) (*Ring, error) {
	if n < 1 {
		panic("frame: at least one frame in flight is required")
	}
	if workers < 1 {
		panic("frame: at least one worker per slot is required")
	}
	cfg := ringConfig{uniformSize: 256, traversalCap: 64, labelPrefix: "Frame"}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Ring{slots: make([]*Slot, 0, n)}
	for i := 0; i < n; i++ {
		s, err := newSlot(device, i, workers, cfg)
		if s != nil {
			r.slots = append(r.slots, s)
		}
		if err != nil {
			r.Release()
			return nil, fmt.Errorf("frame: slot %d: %w", i, err)
		}
	}
	return r, nil
}

// newSlot returns the partially built slot alongside any error so the caller can release it.
func newSlot(device gpu.Device, index, workers int, cfg ringConfig) (*Slot, error) {
	label := fmt.Sprintf("%s %d", cfg.labelPrefix, index)
	s := &Slot{Index: index, Workers: make([]Worker, 0, workers)}

	var err error
	if s.Primary, err = device.NewPrimaryStream(label + " Primary"); err != nil {
		return s, err
	}
	for w := 0; w < workers; w++ {
		stream, err := device.NewSecondaryStream(fmt.Sprintf("%s Worker %d", label, w))
		if err != nil {
			return s, err
		}
		s.Workers = append(s.Workers, Worker{Stream: stream, Traversal: octree.NewTraversal(cfg.traversalCap)})
	}
	if s.Fence, err = device.NewFence(true); err != nil {
		return s, err
	}
	if s.ImageAcquired, err = device.NewSemaphore(); err != nil {
		return s, err
	}
	if s.RenderFinished, err = device.NewSemaphore(); err != nil {
		return s, err
	}
	if s.Uniforms, err = device.NewUniformBuffer(label+" Uniforms", cfg.uniformSize); err != nil {
		return s, err
	}
	return s, nil
}

// Len returns the number of slots.
func (r *Ring) Len() int { return len(r.slots) }

// Slot returns the slot used by frame number frame.
func (r *Ring) Slot(frame uint64) *Slot {
	return r.slots[frame%uint64(len(r.slots))]
}

// At returns slot i.
func (r *Ring) At(i int) *Slot { return r.slots[i] }

// WaitIdle blocks until the fence of every slot is signaled. A failed wait does not stop the
// remaining slots from being waited on.
//
// Returns:
//   - error: every wait failure, joined
func (r *Ring) WaitIdle() error {
	var errs []error
	for _, s := range r.slots {
		if err := s.Fence.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("frame: slot %d: wait: %w", s.Index, err))
		}
	}
	return errors.Join(errs...)
}

// Release frees every slot resource. The caller must have waited idle.
func (r *Ring) Release() {
	for _, s := range r.slots {
		s.release()
	}
	r.slots = nil
}
